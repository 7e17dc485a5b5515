package workflow

import (
	"fmt"
	"net/url"

	"github.com/reseich/reseich-api/internal/auth"
)

// CallbackURLs builds the signed URLs the workflow engine reports back to.
type CallbackURLs struct {
	baseURL string
	signer  *auth.CallbackSigner
}

func NewCallbackURLs(baseURL string, signer *auth.CallbackSigner) *CallbackURLs {
	return &CallbackURLs{baseURL: baseURL, signer: signer}
}

func (c *CallbackURLs) Research(researchID string) (string, error) {
	return c.build(auth.CallbackResearch, researchID, "/api/research/status/")
}

func (c *CallbackURLs) Chat(messageID string) (string, error) {
	return c.build(auth.CallbackChat, messageID, "/api/chat/response/")
}

func (c *CallbackURLs) build(kind, id, path string) (string, error) {
	token, err := c.signer.Sign(kind, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%s?token=%s", c.baseURL, path, url.PathEscape(id), url.QueryEscape(token)), nil
}
