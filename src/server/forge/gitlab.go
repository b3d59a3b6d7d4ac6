package forge

import (
	"crypto/subtle"
	"fmt"
	"strings"
)

// GitLab serves the snapshot from GitLab Pages (gitlab.com).
type GitLab struct {
	Project      string // "namespace/project"
	WebhookToken string // X-Gitlab-Token value
}

func NewGitLab(project, webhookToken string) *GitLab {
	return &GitLab{
		Project:      strings.Trim(project, "/"),
		WebhookToken: webhookToken,
	}
}

func (g *GitLab) Name() string { return "gitlab" }

func (g *GitLab) SignatureHeader() string { return "X-Gitlab-Token" }

func (g *GitLab) VerifyWebhookSignature(_ []byte, signature string) bool {
	if g.WebhookToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(g.WebhookToken), []byte(signature)) == 1
}

func (g *GitLab) RepoURL() string {
	return fmt.Sprintf("https://gitlab.com/%s", g.Project)
}

func (g *GitLab) PagesURL(file string) string {
	namespace, project := splitProject(g.Project)
	return fmt.Sprintf("https://%s.gitlab.io/%s/%s", strings.ToLower(namespace), project, strings.TrimLeft(file, "/"))
}
