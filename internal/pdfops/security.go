package pdfops

import (
	"context"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sammcj/pdfmaster/internal/response"
)

// Protect encrypts the document with AES-256, using password for both the user and
// owner passwords.
func (p *Processor) Protect(ctx context.Context, in, out, password string) error {
	if strings.TrimSpace(password) == "" {
		return response.BadRequest("Password is required", nil)
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	conf := NewConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password
	conf.EncryptUsingAES = true
	conf.EncryptKeyLength = 256

	if err := api.EncryptFile(in, out, conf); err != nil {
		return classify("failed to protect PDF", err)
	}
	return nil
}

// Unlock removes encryption using password. A wrong password yields a client
// error wrapping ErrInvalidPassword.
func (p *Processor) Unlock(ctx context.Context, in, out, password string) error {
	if password == "" {
		return response.BadRequest("Password is required", nil)
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	conf := NewConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password

	if err := api.DecryptFile(in, out, conf); err != nil {
		return classify("failed to unlock PDF", err)
	}
	return nil
}
