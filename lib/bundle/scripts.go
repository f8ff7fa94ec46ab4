// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"fmt"
	"strings"

	"github.com/drydock-dev/drydock/lib/remote"
	"github.com/drydock-dev/drydock/lib/unit"
)

// Exit codes of install.sh.
const (
	InstallOK            = 0
	InstallFailed        = 1
	InstallInvalidBundle = 2
	InstallServiceFailed = 3
)

// Params parameterize the install and uninstall scripts.
type Params struct {
	App           string
	Version       string
	AppDir        string
	User          string
	Mode          unit.Mode
	PythonVersion string

	// DistFile is the artifact's base name under dist/.
	DistFile     string
	Requirements bool

	// Units are the top-level unit files the release installs.
	Units []string

	// CaddyConfigPath is the installed site file. Empty disables the
	// webserver steps.
	CaddyConfigPath string
}

// header renders the shell variable block shared by both scripts. All
// values are quoted, so the static script bodies never interpolate
// configuration directly.
func (p Params) header(script string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#!/usr/bin/env bash\n")
	fmt.Fprintf(&b, "# %s for %s %s, generated by drydock\n", script, p.App, p.Version)
	b.WriteString("set -euo pipefail\n\n")

	assign := func(name, value string) {
		fmt.Fprintf(&b, "%s=%s\n", name, remote.Quote(value))
	}
	assign("APP", p.App)
	assign("VERSION", p.Version)
	assign("APP_DIR", p.AppDir)
	assign("APP_USER", p.User)
	assign("MODE", string(p.Mode))
	assign("PYTHON_VERSION", p.PythonVersion)
	assign("DISTFILE", p.DistFile)
	if p.Requirements {
		assign("REQUIREMENTS", "1")
	} else {
		assign("REQUIREMENTS", "")
	}
	assign("CADDY_CONFIG", p.CaddyConfigPath)
	assign("SYSTEMD_DIR", "/etc/systemd/system")

	quoted := make([]string, len(p.Units))
	for i, name := range p.Units {
		quoted[i] = remote.Quote(name)
	}
	fmt.Fprintf(&b, "UNITS=(%s)\n", strings.Join(quoted, " "))
	b.WriteString(`RELEASE_DIR="$(cd "$(dirname "${BASH_SOURCE[0]}")" && pwd)"` + "\n")
	return b.String()
}

// RenderInstallScript renders install.sh. It runs as root from the
// extracted release directory and:
//
//  1. creates the system user
//  2. moves .env to {app_dir}/.env with mode 0600
//  3. builds .venv with uv and installs the artifact (python), or
//     installs the binary with mode 0755 (binary)
//  4. disables and removes units recorded in {app_dir}/.units that
//     this release no longer ships
//  5. writes units and drop-ins to /etc/systemd/system
//  6. records .units, .version and .appenv and reloads systemd
//  7. installs the Caddy site file, restoring the previous one if
//     validation or reload fails
//
// Exit codes: 0 ok, 1 generic failure, 2 invalid bundle, 3 systemd
// rejected the units.
func RenderInstallScript(p Params) string {
	return p.header("install.sh") + "\n" + installBody
}

// RenderUninstallScript renders uninstall.sh, which stops, disables
// and removes the release's units and site file.
func RenderUninstallScript(p Params) string {
	return p.header("uninstall.sh") + "\n" + uninstallBody
}

const sharedFunctions = `fail() {
	echo "$(basename "$0"): $2" >&2
	exit "$1"
}

# instance_glob maps a template unit to a glob over its instances.
instance_glob() {
	local unit="$1"
	echo "${unit/@./@*.}"
}

remove_unit() {
	local unit="$1"
	case "$unit" in
		"$APP"-*) ;;
		*) echo "refusing to remove non-application unit $unit" >&2; return 0 ;;
	esac
	if [[ "$unit" == *@.* ]]; then
		systemctl stop "$(instance_glob "$unit")" 2>/dev/null || true
		systemctl disable --quiet "$unit" 2>/dev/null || true
	else
		systemctl disable --now --quiet "$unit" 2>/dev/null || true
	fi
	systemctl reset-failed "$(instance_glob "$unit")" 2>/dev/null || true
	rm -f "$SYSTEMD_DIR/$unit"
	rm -rf "$SYSTEMD_DIR/$unit.d"
	find "$SYSTEMD_DIR" -mindepth 2 -maxdepth 2 -path '*.wants/*' -name "$(instance_glob "$unit")" -delete 2>/dev/null || true
}
`

const installBody = sharedFunctions + `
trap 'fail 1 "command failed at line $LINENO"' ERR

[[ -f "$RELEASE_DIR/manifest.cbor" ]] || fail 2 "manifest.cbor missing from $RELEASE_DIR"
[[ -s "$RELEASE_DIR/dist/$DISTFILE" ]] || fail 2 "dist/$DISTFILE missing or empty"
for unit in "${UNITS[@]}"; do
	[[ -f "$RELEASE_DIR/units/$unit" ]] || fail 2 "units/$unit missing"
done

# 1. system user
if ! id -u "$APP_USER" >/dev/null 2>&1; then
	useradd --system --no-create-home --shell /usr/sbin/nologin "$APP_USER"
fi
mkdir -p "$APP_DIR"

# 2. environment
if [[ -f "$RELEASE_DIR/.env" ]]; then
	mv -f "$RELEASE_DIR/.env" "$APP_DIR/.env"
	chown "root:$APP_USER" "$APP_DIR/.env"
	chmod 0600 "$APP_DIR/.env"
elif [[ ! -f "$APP_DIR/.env" ]]; then
	install -m 0600 -o root -g "$APP_USER" /dev/null "$APP_DIR/.env"
fi

# 3. artifact
if [[ "$MODE" == python ]]; then
	UV="$(command -v uv || true)"
	if [[ -z "$UV" && -n "${SUDO_USER:-}" ]]; then
		UV="$(getent passwd "$SUDO_USER" | cut -d: -f6)/.local/bin/uv"
	fi
	[[ -x "$UV" ]] || fail 1 "uv not found; install it for the deploy user"
	export UV_PYTHON_INSTALL_DIR=/opt/drydock/python
	"$UV" venv --quiet --managed-python --python "$PYTHON_VERSION" "$RELEASE_DIR/.venv"
	if [[ -n "$REQUIREMENTS" ]]; then
		"$UV" pip install --quiet --python "$RELEASE_DIR/.venv/bin/python" --no-deps "$RELEASE_DIR/dist/$DISTFILE"
		"$UV" pip install --quiet --python "$RELEASE_DIR/.venv/bin/python" -r "$RELEASE_DIR/requirements.txt"
	else
		"$UV" pip install --quiet --python "$RELEASE_DIR/.venv/bin/python" "$RELEASE_DIR/dist/$DISTFILE"
	fi
	BIN_DIR="$APP_DIR/current/.venv/bin"
else
	install -m 0755 "$RELEASE_DIR/dist/$DISTFILE" "$RELEASE_DIR/$APP"
	BIN_DIR="$APP_DIR/current"
fi
# The release stays owned by the deploy user so it can prune it later.
chown -R "${SUDO_USER:-root}:" "$RELEASE_DIR"

# 4. stale units
if [[ -f "$APP_DIR/.units" ]]; then
	while IFS= read -r unit; do
		[[ -z "$unit" ]] && continue
		for wanted in "${UNITS[@]}"; do
			[[ "$wanted" == "$unit" ]] && continue 2
		done
		remove_unit "$unit"
	done <"$APP_DIR/.units"
fi

# 5. units and drop-ins
for unit in "${UNITS[@]}"; do
	rm -rf "$SYSTEMD_DIR/$unit.d"
done
cp -R "$RELEASE_DIR/units/." "$SYSTEMD_DIR/"

# 6. records
printf '%s\n' "${UNITS[@]}" >"$APP_DIR/.units"
printf '%s\n' "$VERSION" >"$APP_DIR/.version"
cat >"$APP_DIR/.appenv" <<APPENV
set -a
source $APP_DIR/.env
set +a
export PATH="$BIN_DIR:\$PATH"
APPENV
systemctl daemon-reload || fail 3 "systemd rejected the unit files"

# 7. webserver
if [[ -n "$CADDY_CONFIG" && -f "$RELEASE_DIR/Caddyfile" ]]; then
	mkdir -p "$(dirname "$CADDY_CONFIG")"
	backup=""
	if [[ -f "$CADDY_CONFIG" ]]; then
		backup="$(mktemp)"
		cp -f "$CADDY_CONFIG" "$backup"
	fi
	usermod -aG "$APP_USER" caddy 2>/dev/null || true
	install -m 0644 "$RELEASE_DIR/Caddyfile" "$CADDY_CONFIG"
	if ! caddy validate --config /etc/caddy/Caddyfile --adapter caddyfile >/dev/null 2>&1 || ! systemctl reload caddy; then
		echo "install.sh: caddy rejected the site file, restoring the previous one" >&2
		if [[ -n "$backup" ]]; then
			cp -f "$backup" "$CADDY_CONFIG"
		else
			rm -f "$CADDY_CONFIG"
		fi
		systemctl reload caddy 2>/dev/null || true
	fi
	[[ -n "$backup" ]] && rm -f "$backup"
fi

exit 0
`

const uninstallBody = sharedFunctions + `
for unit in "${UNITS[@]}"; do
	remove_unit "$unit"
done
systemctl daemon-reload
rm -f "$APP_DIR/.units" "$APP_DIR/.version"

if [[ -n "$CADDY_CONFIG" && -f "$CADDY_CONFIG" ]]; then
	rm -f "$CADDY_CONFIG"
	systemctl reload caddy 2>/dev/null || true
fi

exit 0
`
