package fetch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
)

// AuthMethod creates a go-git AuthMethod for the component's auth settings.
// A nil config means anonymous access.
func AuthMethod(auth *config.AuthConfig) (transport.AuthMethod, error) {
	if auth == nil {
		return nil, nil
	}
	switch auth.Type {
	case "":
		return nil, nil
	case config.AuthTypeSSH:
		keyPath := auth.KeyPath
		if keyPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, errors.AuthError("cannot resolve default SSH key").WithCause(err).Build()
			}
			keyPath = filepath.Join(home, ".ssh", "id_rsa")
		}
		keys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
		if err != nil {
			return nil, errors.AuthError(fmt.Sprintf("failed to load SSH key from %s", keyPath)).WithCause(err).Build()
		}
		return keys, nil
	case config.AuthTypeToken:
		if auth.Token == "" {
			return nil, errors.AuthError("token authentication requires a token").Build()
		}
		username := auth.Username
		if username == "" {
			username = "token"
		}
		return &http.BasicAuth{Username: username, Password: auth.Token}, nil
	case config.AuthTypeBasic:
		if auth.Username == "" || auth.Password == "" {
			return nil, errors.AuthError("basic authentication requires username and password").Build()
		}
		return &http.BasicAuth{Username: auth.Username, Password: auth.Password}, nil
	default:
		return nil, errors.AuthError(fmt.Sprintf("unsupported authentication type: %s", auth.Type)).Build()
	}
}
