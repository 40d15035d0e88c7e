package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"churchsite/internal/database"
	appLog "churchsite/internal/log"
	"churchsite/internal/metrics"
	"churchsite/internal/model"
)

const maxBodyLen = 5000

type MessageStore interface {
	Create(ctx context.Context, m *model.ContactMessage) error
	SetDelivery(ctx context.Context, id, status, errMsg string) error
}

type MinistryLookup interface {
	Get(ctx context.Context, id uint) (*model.Ministry, error)
}

// Request is a visitor submission.
type Request struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type Service struct {
	messages   MessageStore
	ministries MinistryLookup
	mailer     Mailer
	from       string
	contactTo  string
	metrics    *metrics.Metrics
}

// NewService wires the notifier. contactTo receives contact-form mail and
// inquiries for ministries without a contact email.
func NewService(messages MessageStore, ministries MinistryLookup, mailer Mailer, from, contactTo string, m *metrics.Metrics) *Service {
	return &Service{
		messages:   messages,
		ministries: ministries,
		mailer:     mailer,
		from:       from,
		contactTo:  contactTo,
		metrics:    m,
	}
}

func (r *Request) normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Subject = strings.TrimSpace(r.Subject)
	r.Message = strings.TrimSpace(r.Message)

	switch {
	case r.Name == "":
		return model.Invalid("name", "is required")
	case r.Email == "":
		return model.Invalid("email", "is required")
	case r.Message == "":
		return model.Invalid("message", "is required")
	case len(r.Message) > maxBodyLen:
		return model.Invalid("message", "must be at most %d characters", maxBodyLen)
	}
	addr, err := mail.ParseAddress(r.Email)
	if err != nil {
		return model.Invalid("email", "is not a valid address")
	}
	r.Email = addr.Address
	return nil
}

// Contact stores and forwards a contact-form message. Delivery failures
// are recorded on the message, not returned.
func (s *Service) Contact(ctx context.Context, req Request) (*model.ContactMessage, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	if req.Subject == "" {
		req.Subject = "Website contact form"
	}
	msg := s.newMessage(model.MessageContact, nil, req)
	body, err := render(contactTmpl, templateData{
		ID: msg.ID, Name: req.Name, Email: req.Email, Phone: req.Phone,
		Subject: req.Subject, Body: req.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("render contact mail: %w", err)
	}
	return s.deliver(ctx, msg, s.contactTo, "[Contact] "+req.Subject, body)
}

// MinistryInquiry forwards a question to the ministry's contact. Unknown
// or inactive ministries return database.ErrNotFound.
func (s *Service) MinistryInquiry(ctx context.Context, ministryID uint, req Request) (*model.ContactMessage, error) {
	m, err := s.ministries.Get(ctx, ministryID)
	if err != nil {
		return nil, err
	}
	if m.Status == model.StatusInactive {
		return nil, database.ErrNotFound
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}
	if req.Subject == "" {
		req.Subject = "Question about " + m.Name
	}

	msg := s.newMessage(model.MessageMinistry, &m.ID, req)
	body, err := render(inquiryTmpl, templateData{
		ID: msg.ID, Name: req.Name, Email: req.Email, Phone: req.Phone,
		Body: req.Message, Ministry: m.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("render inquiry mail: %w", err)
	}
	to := m.ContactEmail
	if to == "" {
		to = s.contactTo
	}
	return s.deliver(ctx, msg, to, "["+m.Name+"] "+req.Subject, body)
}

func (s *Service) newMessage(kind string, ministryID *uint, req Request) *model.ContactMessage {
	return &model.ContactMessage{
		ID:         uuid.NewString(),
		Kind:       kind,
		MinistryID: ministryID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Subject:    req.Subject,
		Body:       req.Message,
		Delivery:   model.DeliveryPending,
	}
}

func (s *Service) deliver(ctx context.Context, msg *model.ContactMessage, to, subject, body string) (*model.ContactMessage, error) {
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	var sendErr error
	if to == "" {
		sendErr = errors.New("no recipient configured")
	} else {
		sendErr = s.mailer.Send(ctx, Message{
			From:    s.from,
			To:      []string{to},
			ReplyTo: msg.Email,
			Subject: subject,
			Body:    body,
		})
	}

	msg.Delivery = model.DeliverySent
	errMsg := ""
	if sendErr != nil {
		msg.Delivery = model.DeliveryFailed
		errMsg = sendErr.Error()
		msg.DeliveryErr = errMsg
		appLog.Error("notify: delivery failed", sendErr, "message_id", msg.ID, "kind", msg.Kind)
	}
	s.metrics.Notification(msg.Kind, msg.Delivery)

	if err := s.messages.SetDelivery(ctx, msg.ID, msg.Delivery, errMsg); err != nil {
		appLog.Error("notify: record delivery failed", err, "message_id", msg.ID)
	}
	return msg, nil
}
