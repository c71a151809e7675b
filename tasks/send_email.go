package tasks

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"promo-pipelines/configs"
	"promo-pipelines/types"
)

const summaryAttachmentName = "promotion_files.csv"

// SendRunSummary mails the run reports to NOTIFY_EMAILS. Returns true if an
// email was sent; no recipients configured means nothing to do.
func SendRunSummary(ctx context.Context, cfg *configs.Env, reports []*types.RunReport) (bool, error) {
	logger := zap.L().With(zap.String("task", "send_email"))
	logger.Info("send_email started")

	recipients := collectEmailAddresses(cfg.NotifyEmails)
	if len(recipients) == 0 {
		logger.Info("send_email skipped", zap.String("reason", "no NOTIFY_EMAILS"))
		return false, nil
	}
	if len(reports) == 0 {
		return false, fmt.Errorf("no run reports to send")
	}

	for _, email := range recipients {
		if _, err := mail.ParseAddress(email); err != nil {
			return false, fmt.Errorf("invalid email address %q: %w", email, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	attachment, err := outcomesCSV(reports)
	if err != nil {
		return false, fmt.Errorf("build attachment: %w", err)
	}

	if err := sendEmailWithAttachment(cfg, recipients, summarySubject(reports), summaryBody(reports), summaryAttachmentName, attachment); err != nil {
		return false, fmt.Errorf("send email: %w", err)
	}

	logger.Info("send_email complete", zap.Int("recipient_count", len(recipients)))
	return true, nil
}

func collectEmailAddresses(lists ...[]string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, list := range lists {
		for _, email := range list {
			email = strings.TrimSpace(email)
			if email != "" && !seen[email] {
				seen[email] = true
				result = append(result, email)
			}
		}
	}

	return result
}

func summarySubject(reports []*types.RunReport) string {
	ok, failed := 0, 0
	for _, r := range reports {
		ok += r.FilesSucceeded
		failed += r.FilesFailed
	}
	status := "완료"
	if failed > 0 {
		status = "일부 실패"
	}
	return fmt.Sprintf("[프로모션 업로드] %s: 성공 %d / 실패 %d", status, ok, failed)
}

func summaryBody(reports []*types.RunReport) string {
	var b strings.Builder
	for _, r := range reports {
		fmt.Fprintf(&b, "[%s] run %s\n", r.Kind.Label(), r.RunID)
		fmt.Fprintf(&b, "  rows read: %d, pending: %d, expanded: %d\n", r.RowsRead, r.RowsPending, r.RowsExpanded)
		fmt.Fprintf(&b, "  files: %d generated, %d succeeded, %d failed\n", r.FilesGenerated, r.FilesSucceeded, r.FilesFailed)
		fmt.Fprintf(&b, "  rows stamped: %d\n", r.RowsStamped)
		for _, f := range r.Files {
			if !f.Success {
				fmt.Fprintf(&b, "  FAILED %s: %s\n", f.Name, f.Error)
			}
		}
		if r.FilesFailed > 0 {
			b.WriteString("  processed dates were not written; run `promo resume` to retry failed files\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func outcomesCSV(reports []*types.RunReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"kind", "file", "channel", "rows", "success", "attempts", "error"}); err != nil {
		return nil, err
	}
	for _, r := range reports {
		for _, f := range r.Files {
			rec := []string{
				string(r.Kind), f.Name, f.Channel, strconv.Itoa(f.Rows),
				strconv.FormatBool(f.Success), strconv.Itoa(f.Attempts), f.Error,
			}
			if err := w.Write(rec); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func sendEmailWithAttachment(cfg *configs.Env, to []string, subject, body, attachmentName string, attachmentData []byte) error {
	boundary := "----=_Part_0_1234567890"

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", cfg.EmailFromAddress))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: =?UTF-8?B?%s?=\r\n", base64.StdEncoding.EncodeToString([]byte(subject))))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n", boundary))
	msg.WriteString("\r\n")

	// Body part
	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	// Attachment part
	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString(fmt.Sprintf("Content-Type: text/csv; charset=\"utf-8\"; name=\"%s\"\r\n", attachmentName))
	msg.WriteString("Content-Transfer-Encoding: base64\r\n")
	msg.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", attachmentName))
	msg.WriteString("\r\n")
	msg.WriteString(base64.StdEncoding.EncodeToString(attachmentData))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	auth := smtp.PlainAuth("", cfg.EmailSMTPUser, cfg.EmailSMTPPassword, cfg.EmailSMTPHost)
	addr := fmt.Sprintf("%s:%s", cfg.EmailSMTPHost, cfg.EmailSMTPPort)

	return smtp.SendMail(addr, auth, cfg.EmailFromAddress, to, []byte(msg.String()))
}
