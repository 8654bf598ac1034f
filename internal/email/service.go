package email

import (
	"fmt"
	"net/smtp"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host     string
	port     string
	from     string
	sendMail sendFunc
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host:     host,
		port:     port,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

// SendOrderConfirmation sends the confirmation mail for a newly placed order.
func (s *Service) SendOrderConfirmation(to string, summary OrderSummary) error {
	subject := fmt.Sprintf("Order confirmation: %s", summary.OrderNumber)
	return s.send(to, subject, BuildOrderConfirmationBody(summary))
}

// SendStatusUpdate tells the customer their order moved to a new status.
func (s *Service) SendStatusUpdate(to string, update StatusUpdate) error {
	subject := fmt.Sprintf("Order %s is now %s", update.OrderNumber, statusLabel(update.Current))
	return s.send(to, subject, BuildStatusUpdateBody(update))
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := s.sendMail(addr, nil, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
