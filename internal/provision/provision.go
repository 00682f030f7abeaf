// Package provision implements the operator command that creates users and
// mints their bearer tokens.
package provision

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/rapidphotos/internal/flagx"
	"github.com/dmitrijs2005/rapidphotos/internal/server/models"
)

var provisionFlags = []string{"-email", "-user"}

// Options selects what to provision: a new user by email or a token for
// an existing user id.
type Options struct {
	Email  string
	UserID string
}

// Provisioner is the user service as seen by the command.
type Provisioner interface {
	Provision(ctx context.Context, email string) (*models.User, string, error)
	IssueToken(ctx context.Context, userID string) (string, error)
}

// ParseArgs reads -email and -user from args, ignoring server flags.
func ParseArgs(args []string) (Options, error) {
	var opts Options

	fs := flag.NewFlagSet("provision", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.Email, "email", "", "email of the user to create")
	fs.StringVar(&opts.UserID, "user", "", "existing user id to issue a token for")

	if err := fs.Parse(flagx.FilterArgs(args, provisionFlags)); err != nil {
		return Options{}, err
	}
	if opts.Email != "" && opts.UserID != "" {
		return Options{}, errors.New("-email and -user are mutually exclusive")
	}
	return opts, nil
}

// GetSimpleText prints a prompt to w and reads a single trimmed line.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Run executes the command. On a terminal it prompts for a missing email and
// prints labelled output; otherwise it prints only the token so the output
// can be captured by scripts.
func Run(ctx context.Context, p Provisioner, opts Options, in *bufio.Reader, out io.Writer, interactive bool) error {
	if opts.UserID != "" {
		token, err := p.IssueToken(ctx, opts.UserID)
		if err != nil {
			return err
		}
		return printToken(out, interactive, opts.UserID, token)
	}

	if opts.Email == "" {
		if !interactive {
			return errors.New("either -email or -user is required")
		}
		email, err := GetSimpleText(in, "Email of the new user", out)
		if err != nil {
			return err
		}
		opts.Email = email
	}

	user, token, err := p.Provision(ctx, opts.Email)
	if err != nil {
		return err
	}
	return printToken(out, interactive, user.ID, token)
}

func printToken(out io.Writer, interactive bool, userID, token string) error {
	if !interactive {
		_, err := fmt.Fprintln(out, token)
		return err
	}
	_, err := fmt.Fprintf(out, "User:         %s\nAccess token: %s\n", userID, token)
	return err
}
