package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/models"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/notifier"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/repository"
	apperrors "github.com/Doogleyarae/Doogleonline-sub000/pkg/errors"
)

// ContactMailer sends the admin reply back to the customer, best-effort.
type ContactMailer interface {
	SendContactReply(msg *models.ContactMessage) bool
}

type ContactService interface {
	Submit(ctx context.Context, msg *models.ContactMessage) error
	List(ctx context.Context) ([]models.ContactMessage, error)
	Get(ctx context.Context, id string) (*models.ContactMessage, error)
	Reply(ctx context.Context, id, response string) (*models.ContactMessage, error)
}

type contactService struct {
	repo      repository.ContactRepository
	mailer    ContactMailer
	broadcast Broadcaster
}

func NewContactService(repo repository.ContactRepository, contactMailer ContactMailer, broadcast Broadcaster) ContactService {
	if broadcast == nil {
		broadcast = NopBroadcaster()
	}
	return &contactService{
		repo:      repo,
		mailer:    contactMailer,
		broadcast: broadcast,
	}
}

func (s *contactService) Submit(ctx context.Context, msg *models.ContactMessage) error {
	if msg.Name == "" || msg.Email == "" || msg.Message == "" {
		return apperrors.NewValidationError("Name, email and message are required")
	}
	if !strings.Contains(msg.Email, "@") {
		return apperrors.NewValidationError("A valid email address is required")
	}

	if err := s.repo.Create(ctx, msg); err != nil {
		return err
	}

	s.broadcast.Broadcast(notifier.NewEvent(notifier.EventNewMessage, msg))
	logrus.WithField("message_id", msg.ID.Hex()).Info("contact message received")
	return nil
}

func (s *contactService) List(ctx context.Context) ([]models.ContactMessage, error) {
	return s.repo.List(ctx)
}

func (s *contactService) Get(ctx context.Context, id string) (*models.ContactMessage, error) {
	msg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("Message")
		}
		return nil, err
	}
	return msg, nil
}

func (s *contactService) Reply(ctx context.Context, id, response string) (*models.ContactMessage, error) {
	if response == "" {
		return nil, apperrors.NewValidationError("Response text is required")
	}

	msg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// One reply per message; there is no threading.
	if msg.AdminResponse != "" {
		return nil, apperrors.NewValidationError("Message has already been answered")
	}

	now := time.Now()
	if err := s.repo.SetResponse(ctx, id, response, now); err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("Message")
		}
		return nil, err
	}

	msg.AdminResponse = response
	msg.ResponseDate = &now

	s.mailer.SendContactReply(msg)
	return msg, nil
}
