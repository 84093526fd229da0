package pull

import (
	"fmt"
	"os"

	"github.com/odvcencio/ostpull/pkg/keyfile"
)

// RemoteConfig is the local repo configuration for one remote, per
// spec.md §6: "Remote name is a required key in local repo config under
// remote "NAME", which provides url= (and optionally branches= list)."
type RemoteConfig struct {
	URL      string
	Branches []string
}

// LoadRemoteConfig reads and parses the local repo config at path and
// returns the section for remoteName.
func LoadRemoteConfig(path, remoteName string) (*RemoteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load local config %s: %w", path, err)
	}
	f, err := keyfile.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse local config %s: %w", path, err)
	}
	url, ok := f.Get("remote", remoteName, "url")
	if !ok {
		return nil, fmt.Errorf("remote %q has no url= in %s: %w", remoteName, path, ErrValidation)
	}
	branches, _ := f.GetList("remote", remoteName, "branches", ",")
	return &RemoteConfig{URL: url, Branches: branches}, nil
}
