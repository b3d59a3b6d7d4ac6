// Package forge knows the Git hosts that publish the stores.json snapshot:
// where the Pages copy lives and how their push webhooks are signed.
package forge

import (
	"fmt"
	"strings"
)

// Forge abstracts the Git host (GitHub, GitLab) serving the snapshot.
type Forge interface {
	Name() string

	// SignatureHeader is the request header carrying the webhook signature.
	SignatureHeader() string

	// VerifyWebhookSignature checks a webhook payload.
	// GitHub: HMAC-SHA256 of the body against X-Hub-Signature-256.
	// GitLab: the X-Gitlab-Token header against the configured secret.
	VerifyWebhookSignature(payload []byte, signature string) bool

	// RepoURL is the web URL of the repository.
	RepoURL() string

	// PagesURL is the static-hosting URL of a file published from the repository.
	PagesURL(file string) string
}

// New returns the forge for kind ("github" or "gitlab").
// project is "owner/repo" (GitHub) or "namespace/project" (GitLab).
func New(kind, project, secret string) (Forge, error) {
	switch strings.ToLower(kind) {
	case "github":
		return NewGitHub(project, secret), nil
	case "gitlab":
		return NewGitLab(project, secret), nil
	default:
		return nil, fmt.Errorf("unknown forge %q", kind)
	}
}

// splitProject returns the owner and repository parts of "owner/repo".
func splitProject(project string) (string, string) {
	owner, repo, ok := strings.Cut(strings.Trim(project, "/"), "/")
	if !ok {
		return owner, ""
	}
	return owner, repo
}
