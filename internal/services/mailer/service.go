// -----------------------------------------------------------------------
// Mailer Service - SMTP delivery of order lifecycle and operator emails
// -----------------------------------------------------------------------

package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/models"
)

// Service sends order lifecycle emails over SMTP.
type Service struct {
	cfg    *common.Config
	logger arbor.ILogger
}

var _ interfaces.Notifier = (*Service)(nil)

// NewService creates a new mailer service.
func NewService(cfg *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
	}
}

// SendInitial acknowledges receipt of an order to the requester.
func (s *Service) SendInitial(ctx context.Context, order *models.Order) error {
	subject := fmt.Sprintf("Order received: %s", order.OrderID)

	var body strings.Builder
	fmt.Fprintf(&body, "Your order %s has been received and queued for processing.\r\n\r\n", order.OrderID)
	fmt.Fprintf(&body, "Order date: %s\r\n", order.OrderDate.Format("2006-01-02 15:04:05 MST"))
	body.WriteString("You will receive another email when all products are ready.\r\n")

	if err := s.send(order.RequesterEmail, subject, body.String()); err != nil {
		return fmt.Errorf("failed to send initial email for order %s: %w", order.OrderID, err)
	}
	s.logger.Info().Str("order_id", order.OrderID).Str("to", order.RequesterEmail).Msg("Initial email sent")
	return nil
}

// SendCompletion notifies the requester that every product in the order has
// reached a terminal state, with the download location.
func (s *Service) SendCompletion(ctx context.Context, order *models.Order) error {
	subject := fmt.Sprintf("Order complete: %s", order.OrderID)

	var body strings.Builder
	fmt.Fprintf(&body, "Your order %s is complete.\r\n\r\n", order.OrderID)
	fmt.Fprintf(&body, "Products are available at:\r\n%s/%s\r\n\r\n", strings.TrimRight(s.cfg.Cache.DownloadBaseURL, "/"), order.OrderID)
	body.WriteString("Products remain available for a limited retention period before they are removed.\r\n")

	if err := s.send(order.RequesterEmail, subject, body.String()); err != nil {
		return fmt.Errorf("failed to send completion email for order %s: %w", order.OrderID, err)
	}
	s.logger.Info().Str("order_id", order.OrderID).Str("to", order.RequesterEmail).Msg("Completion email sent")
	return nil
}

// SendPurgeReport mails the operator a summary of a purge sweep: capacity
// before and after, and the orders removed.
func (s *Service) SendPurgeReport(ctx context.Context, before, after *interfaces.CacheCapacity, orderIDs []string) error {
	if s.cfg.SMTP.OperatorEmail == "" {
		s.logger.Debug().Msg("No operator email configured, skipping purge report")
		return nil
	}

	subject := fmt.Sprintf("Purge report: %d orders removed", len(orderIDs))

	var body strings.Builder
	body.WriteString("Completed purge sweep.\r\n\r\n")
	writeCapacity(&body, "Before", before)
	writeCapacity(&body, "After", after)
	body.WriteString("\r\nPurged orders:\r\n")
	for _, id := range orderIDs {
		fmt.Fprintf(&body, "  %s\r\n", id)
	}

	if err := s.send(s.cfg.SMTP.OperatorEmail, subject, body.String()); err != nil {
		return fmt.Errorf("failed to send purge report: %w", err)
	}
	s.logger.Info().Int("orders", len(orderIDs)).Msg("Purge report sent")
	return nil
}

// SendCorruptInputAlert tells the operator that an archive-delivered input
// failed integrity checks and was sent back for a cache re-pull.
func (s *Service) SendCorruptInputAlert(ctx context.Context, sceneName string) error {
	if s.cfg.SMTP.OperatorEmail == "" {
		s.logger.Debug().Str("scene", sceneName).Msg("No operator email configured, skipping corrupt input alert")
		return nil
	}

	subject := fmt.Sprintf("Corrupt input detected: %s", sceneName)
	body := fmt.Sprintf("Input data for scene %s failed integrity checks and has been scheduled for a cache re-pull.\r\n", sceneName)

	if err := s.send(s.cfg.SMTP.OperatorEmail, subject, body); err != nil {
		return fmt.Errorf("failed to send corrupt input alert: %w", err)
	}
	s.logger.Warn().Str("scene", sceneName).Msg("Corrupt input alert sent")
	return nil
}

func writeCapacity(body *strings.Builder, label string, cap *interfaces.CacheCapacity) {
	if cap == nil {
		fmt.Fprintf(body, "%s: unavailable\r\n", label)
		return
	}
	fmt.Fprintf(body, "%s: %d of %d bytes used (%.1f%% free)\r\n", label, cap.Used, cap.Capacity, cap.PercentFree)
}

// send builds the message and delivers it over SMTP.
func (s *Service) send(to, subject, textBody string) error {
	cfg := s.cfg.SMTP
	if cfg.Host == "" {
		return fmt.Errorf("SMTP host not configured")
	}
	if cfg.From == "" {
		return fmt.Errorf("from email not configured")
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", cfg.FromName, cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(textBody)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	if cfg.UseTLS {
		return s.sendWithTLS(addr, auth, cfg.From, to, msg.String())
	}
	return smtp.SendMail(addr, auth, cfg.From, []string{to}, []byte(msg.String()))
}

// sendWithTLS sends over a direct TLS connection, falling back to STARTTLS
// when the server does not speak TLS on connect.
func (s *Service) sendWithTLS(addr string, auth smtp.Auth, from, to, msg string) error {
	host := strings.Split(addr, ":")[0]

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return s.sendWithSTARTTLS(addr, auth, from, to, msg)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	return transmit(client, auth, from, to, msg)
}

// sendWithSTARTTLS connects in the clear and upgrades.
func (s *Service) sendWithSTARTTLS(addr string, auth smtp.Auth, from, to, msg string) error {
	host := strings.Split(addr, ":")[0]

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	return transmit(client, auth, from, to, msg)
}

func transmit(client *smtp.Client, auth smtp.Auth, from, to, msg string) error {
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set mail recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return client.Quit()
}
