package forge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// GitHub serves the snapshot from GitHub Pages.
type GitHub struct {
	Project       string // "owner/repo"
	WebhookSecret string // HMAC-SHA256 secret
}

func NewGitHub(project, webhookSecret string) *GitHub {
	return &GitHub{
		Project:       strings.Trim(project, "/"),
		WebhookSecret: webhookSecret,
	}
}

func (g *GitHub) Name() string { return "github" }

func (g *GitHub) SignatureHeader() string { return "X-Hub-Signature-256" }

func (g *GitHub) VerifyWebhookSignature(payload []byte, signature string) bool {
	if g.WebhookSecret == "" {
		return false
	}

	// GitHub sends "sha256=<hex>"
	sig := strings.TrimPrefix(signature, "sha256=")
	expectedMAC, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(g.WebhookSecret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedMAC)
}

func (g *GitHub) RepoURL() string {
	return fmt.Sprintf("https://github.com/%s", g.Project)
}

func (g *GitHub) PagesURL(file string) string {
	owner, repo := splitProject(g.Project)
	return PagesURL(owner, repo, file)
}

// PagesURL is https://<owner>.github.io/<repo>/<file>.
func PagesURL(owner, repo, file string) string {
	return fmt.Sprintf("https://%s.github.io/%s/%s", strings.ToLower(owner), repo, strings.TrimLeft(file, "/"))
}
