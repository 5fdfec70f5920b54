package config

import (
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/neon/internal/foundation/errors"
)

const exampleConfig = `# neon nightly build configuration
root_dir: nightly-root
app_version: 2.0-SVN-Neon
revision: "1"

# Free-form settings are readable by every stage through Config.Get.
ftp_host: ftp.example.org

components:
  - name: taglib
    url: https://github.com/taglib/taglib.git
    branch: master
    depth: 1
  - name: amarok
    url: https://invent.kde.org/multimedia/amarok.git
    branch: master
    depth: 1
    depends_on: [taglib]

build:
  component: amarok
  depends_on: [taglib]
  steps:
    - [cmake, -S, "{source}", -B, ".", "-DCMAKE_INSTALL_PREFIX={install}"]
    - [cmake, --build, ".", --parallel]
    - [cmake, --install, "."]

publish:
  - name: drop
    kind: file
    path: /srv/nightly
    latest: true
  - name: mirror
    kind: ftp
    address: ${NEON_FTP_ADDRESS}
    username: ${NEON_FTP_USER}
    password: ${NEON_FTP_PASSWORD}
    remote_dir: /nightly
  - name: ubuntu
    kind: distro
    command: [dput, "ppa:neon/nightly", "{artifact}"]

# fail_fast stops the stage at the first failing unit; continue runs the
# remaining units and fails the stage afterwards. Fetch defaults to fail_fast.
# Publish defaults to continue so one unreachable destination does not keep
# the artifact from the others; set fail_fast to stop at the first failure.
policy:
  fetch: fail_fast
  publish: continue

timeouts:
  fetch: 30m
  build: 3h
  publish: 30m

retention:
  keep: 7
  prune_sources: false

schedule:
  cron: "0 2 * * *"
`

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return errors.FileSystemError("failed to create configuration directory").WithCause(err).WithContext("path", configPath).Build()
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o600); err != nil {
		return errors.FileSystemError("failed to write configuration file").WithCause(err).WithContext("path", configPath).Build()
	}
	return nil
}
