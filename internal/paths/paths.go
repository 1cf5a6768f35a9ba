// Package paths locates nodectl's per-user directories.
package paths

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// AppName names the per-user directories.
const AppName = "nodectl"

// HomeDir returns the invoking user's home directory, even under sudo.
func HomeDir() (string, error) {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir, nil
		}
	}
	return os.UserHomeDir()
}

// realUser returns the uid and gid from SUDO_UID and SUDO_GID.
func realUser() (uid, gid int, ok bool) {
	sudoUID := os.Getenv("SUDO_UID")
	if sudoUID == "" {
		return 0, 0, false
	}
	u, err := strconv.Atoi(sudoUID)
	if err != nil {
		return 0, 0, false
	}
	g, _ := strconv.Atoi(os.Getenv("SUDO_GID"))
	return u, g, true
}

// Ensure creates dir and, under sudo, hands it to the invoking user so
// unprivileged runs can still write the database.
func Ensure(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if uid, gid, ok := realUser(); ok {
		_ = os.Chown(dir, uid, gid)
	}
	return nil
}

func under(parts ...string) (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(append([]string{home}, parts...)...)
	if err := Ensure(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// DataDir returns ~/.local/share/nodectl (or $XDG_DATA_HOME/nodectl),
// creating it if needed. This is the node's userDataPath.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		dir := filepath.Join(xdg, AppName)
		return dir, Ensure(dir)
	}
	return under(".local", "share", AppName)
}

// ConfigDir returns ~/.config/nodectl, creating it if needed.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dir := filepath.Join(xdg, AppName)
		return dir, Ensure(dir)
	}
	return under(".config", AppName)
}

// DefaultDBPath is the sqlite database inside DataDir.
func DefaultDBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName+".db"), nil
}

// DefaultConfigFile is config.toml inside ConfigDir. The file need not exist.
func DefaultConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}
