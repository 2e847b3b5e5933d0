package auth

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

var ErrPasswordMismatch = errors.New("auth: passwords do not match")

// PromptPassword reads a password twice from the terminal without echo.
func PromptPassword(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("auth: stdin is not a terminal")
	}
	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("auth: read password: %w", err)
	}
	fmt.Fprint(out, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("auth: read password: %w", err)
	}
	if string(first) != string(second) {
		return "", ErrPasswordMismatch
	}
	if len(first) == 0 {
		return "", errors.New("auth: empty password")
	}
	return string(first), nil
}
