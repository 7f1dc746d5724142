package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/sharath018/bgv-verification-backend/config"
	"github.com/sharath018/bgv-verification-backend/utils"
)

// Dispatcher is the narrow interface domain services depend on. Dispatch is
// fire-and-forget: delivery failure is logged, never returned.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job)
}

type Service interface {
	Dispatcher

	// Send performs one delivery synchronously: template + credential
	// lookup, placeholder substitution, attachment probing, SMTP send.
	Send(ctx context.Context, job Job) error
}

type service struct {
	repo     Repository
	fallback utils.SMTPAccount
	probe    *http.Client
}

func NewService(repo Repository, cfg *config.Config) Service {
	return &service{
		repo: repo,
		fallback: utils.SMTPAccount{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUsername,
			Password:  cfg.SMTPPassword,
			FromName:  cfg.SMTPFromName,
			FromEmail: cfg.SMTPFromEmail,
		},
		probe: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *service) Dispatch(ctx context.Context, job Job) {
	if utils.KafkaEnabled() {
		payload, err := json.Marshal(job)
		if err == nil {
			if err := utils.PublishMailJob(payload); err == nil {
				return
			}
			log.Printf("⚠️ mail queue publish failed (%s/%s), sending directly", job.Module, job.Action)
		}
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := s.Send(sendCtx, job); err != nil {
			log.Printf("❌ mail send failed (%s/%s): %v", job.Module, job.Action, err)
		}
	}()
}

func (s *service) Send(ctx context.Context, job Job) error {
	tmpl, err := s.repo.ActiveTemplate(ctx, job.Module, job.Action)
	if err != nil {
		return err
	}

	acct := s.fallback
	cred, err := s.repo.ActiveCredential(ctx, job.Module, job.Action)
	if err == nil {
		acct = utils.SMTPAccount{
			Host:      cred.Host,
			Port:      cred.Port,
			Username:  cred.Username,
			Password:  cred.Password,
			FromName:  cred.FromName,
			FromEmail: cred.FromEmail,
		}
	} else if err != ErrCredentialNotFound {
		return err
	} else if s.fallback.Host == "" {
		return ErrCredentialNotFound
	}

	subject := Render(tmpl.Title, job.Vars)
	body := Render(tmpl.Template, job.Vars)

	cc := ParseRecipientList(job.CC)
	attachments := s.fetchAttachments(ctx, job.AttachmentURLs)

	return utils.SendMail(acct, job.To, cc, subject, body, attachments)
}

// Render substitutes {{name}} tokens by literal replacement. Values are
// HTML-escaped so recipient-supplied data cannot inject markup.
func Render(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", html.EscapeString(v))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// ParseRecipientList flattens CC entries. Each entry is either a plain
// address or a JSON-encoded array of addresses; malformed entries are
// skipped, never fatal.
func ParseRecipientList(entries []string) []string {
	var out []string
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(entry), &arr); err != nil {
				log.Printf("⚠️ skipping malformed cc entry: %q", entry)
				continue
			}
			for _, a := range arr {
				a = strings.TrimSpace(a)
				if a != "" {
					out = append(out, a)
				}
			}
			continue
		}
		out = append(out, entry)
	}
	return out
}

// fetchAttachments probes each URL with HEAD and downloads the ones that
// resolve. Unreachable URLs are dropped with a warning.
func (s *service) fetchAttachments(ctx context.Context, urls []string) []utils.Attachment {
	var attachments []utils.Attachment
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
		if err != nil {
			log.Printf("⚠️ dropping attachment, bad URL %q: %v", u, err)
			continue
		}
		resp, err := s.probe.Do(req)
		if err != nil || resp.StatusCode >= 400 {
			if resp != nil {
				resp.Body.Close()
			}
			log.Printf("⚠️ dropping unreachable attachment %q", u)
			continue
		}
		resp.Body.Close()

		getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			continue
		}
		getResp, err := s.probe.Do(getReq)
		if err != nil || getResp.StatusCode >= 400 {
			if getResp != nil {
				getResp.Body.Close()
			}
			log.Printf("⚠️ dropping attachment %q, fetch failed", u)
			continue
		}

		content, err := io.ReadAll(io.LimitReader(getResp.Body, 15<<20))
		getResp.Body.Close()
		if err != nil {
			log.Printf("⚠️ dropping attachment %q, read failed: %v", u, err)
			continue
		}

		name := path.Base(strings.SplitN(u, "?", 2)[0])
		if name == "" || name == "." || name == "/" {
			name = fmt.Sprintf("attachment-%d", len(attachments)+1)
		}
		attachments = append(attachments, utils.Attachment{Filename: name, Content: content})
	}
	return attachments
}
