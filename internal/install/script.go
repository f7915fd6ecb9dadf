package install

import (
	"fmt"
	"strings"
)

// scriptFormatVersion is bumped whenever the script layout changes, so a
// leftover script from an older build is recognizable on disk.
const scriptFormatVersion = 1

// The script templates get their values substituted through a plain string
// replacer rather than text/template; every placeholder is a literal and the
// surrounding shell syntax stays readable.
const unixScriptTemplate = `#!/bin/sh
# quotedesk update script v{{FORMAT}} (installing {{VERSION}})
# Generated for a single update attempt. Safe to re-run after a crash.

PID={{PID}}
WAIT_LIMIT={{WAIT_LIMIT}}
TARGET='{{TARGET}}'
SOURCE='{{SOURCE}}'
BACKUP='{{BACKUP}}'
STAGING='{{STAGING}}'
RESTART='{{RESTART}}'
FAILURE_MARKER='{{FAILURE_MARKER}}'
APPLIED_MARKER='{{APPLIED_MARKER}}'

log() {
    echo "[quotedesk-update] $1"
}

fail() {
    log "update failed at $1: $2"
    printf 'step=%s\ndetail=%s\n' "$1" "$2" > "$FAILURE_MARKER"
    exit 1
}

# Wait for the host process to exit, then escalate. The PID may have been
# recycled by an unrelated process, so the wait is bounded and ends in a
# force-kill rather than stalling forever.
waited=0
while kill -0 "$PID" 2>/dev/null; do
    if [ "$waited" -ge "$WAIT_LIMIT" ]; then
        log "process $PID still alive after ${WAIT_LIMIT}s, force-killing"
        kill -9 "$PID" 2>/dev/null
        sleep 1
        break
    fi

    sleep 1
    waited=$((waited+1))
done

# A re-run after a crash finds the swap in one of four states.
if [ ! -d "$SOURCE" ]; then
    if [ -d "$TARGET" ]; then
        log "swap already completed by an earlier run"
    elif [ -d "$BACKUP" ]; then
        mv "$BACKUP" "$TARGET" 2>/dev/null
        fail "swap" "staged tree is gone, restored the previous version"
    else
        fail "swap" "neither staged tree nor backup is available"
    fi
else
    if [ -d "$TARGET" ]; then
        mv "$TARGET" "$BACKUP" || fail "backup" "cannot move $TARGET aside"
    fi

    if ! mv "$SOURCE" "$TARGET"; then
        mv "$BACKUP" "$TARGET" 2>/dev/null
        fail "swap" "cannot move $SOURCE into place"
    fi
fi

# Carry user data forward from the old tree.
for entry in {{PRESERVE}}; do
    if [ -e "$BACKUP/$entry" ]; then
        rm -rf "${TARGET:?}/$entry"
        mv "$BACKUP/$entry" "$TARGET/$entry" || log "could not preserve $entry"
    fi
done

mkdir -p "$(dirname "$APPLIED_MARKER")"
echo '{{VERSION}}' > "$APPLIED_MARKER"

# Success: the backup and staging leftovers go away, then the new build starts.
rm -rf "$STAGING"
rm -rf "$BACKUP"
rm -f "$FAILURE_MARKER"

log "restarting $RESTART"
(cd "$TARGET" && nohup "$RESTART" >/dev/null 2>&1 &)

rm -f -- "$0"
exit 0
`

const windowsScriptTemplate = `@echo off
rem quotedesk update script v{{FORMAT}} (installing {{VERSION}})
rem Generated for a single update attempt. Safe to re-run after a crash.
setlocal

set "PID={{PID}}"
set "TARGET={{TARGET}}"
set "SOURCE={{SOURCE}}"
set "BACKUP={{BACKUP}}"
set "STAGING={{STAGING}}"
set "RESTART={{RESTART}}"
set "FAILURE_MARKER={{FAILURE_MARKER}}"
set "APPLIED_MARKER={{APPLIED_MARKER}}"
set /a WAITED=0

rem Wait for the host process to exit, then escalate. The PID may have been
rem recycled by an unrelated process, so the wait is bounded and ends in a
rem force-kill rather than stalling forever.
:waitloop
tasklist /FI "PID eq %PID%" 2>nul | find "%PID%" >nul
if errorlevel 1 goto swap
if %WAITED% geq {{WAIT_LIMIT}} (
    taskkill /F /PID %PID% >nul 2>&1
    timeout /t 1 /nobreak >nul
    goto swap
)
timeout /t 1 /nobreak >nul
set /a WAITED+=1
goto waitloop

:swap
rem A re-run after a crash finds the swap in one of four states.
if not exist "%SOURCE%\" (
    if exist "%TARGET%\" goto carry
    if exist "%BACKUP%\" (
        move "%BACKUP%" "%TARGET%" >nul 2>&1
        echo step=swap> "%FAILURE_MARKER%"
        echo detail=staged tree is gone, restored the previous version>> "%FAILURE_MARKER%"
        exit /b 1
    )
    echo step=swap> "%FAILURE_MARKER%"
    echo detail=neither staged tree nor backup is available>> "%FAILURE_MARKER%"
    exit /b 1
)
if exist "%TARGET%\" (
    move "%TARGET%" "%BACKUP%" >nul
    if errorlevel 1 (
        echo step=backup> "%FAILURE_MARKER%"
        echo detail=cannot move %TARGET% aside>> "%FAILURE_MARKER%"
        exit /b 1
    )
)
move "%SOURCE%" "%TARGET%" >nul
if errorlevel 1 (
    move "%BACKUP%" "%TARGET%" >nul 2>&1
    echo step=swap> "%FAILURE_MARKER%"
    echo detail=cannot move %SOURCE% into place>> "%FAILURE_MARKER%"
    exit /b 1
)

:carry
rem Carry user data forward from the old tree.
for %%E in ({{PRESERVE}}) do (
    if exist "%BACKUP%\%%~E\" (
        if exist "%TARGET%\%%~E\" rmdir /s /q "%TARGET%\%%~E"
        move "%BACKUP%\%%~E" "%TARGET%\%%~E" >nul 2>&1
    ) else if exist "%BACKUP%\%%~E" (
        if exist "%TARGET%\%%~E" del /q "%TARGET%\%%~E"
        move "%BACKUP%\%%~E" "%TARGET%\%%~E" >nul 2>&1
    )
)

for %%F in ("%APPLIED_MARKER%") do if not exist "%%~dpF" mkdir "%%~dpF"
echo {{VERSION}}> "%APPLIED_MARKER%"

rem Success: the backup and staging leftovers go away, then the new build starts.
rmdir /s /q "%STAGING%" 2>nul
rmdir /s /q "%BACKUP%" 2>nul
del /q "%FAILURE_MARKER%" 2>nul

start "" /d "%TARGET%" "%RESTART%"

del "%~f0"
exit /b 0
`

// Render produces the handoff script for the plan's platform.
func (p *Plan) Render() string {
	if p.Platform == "windows" {
		return p.substitute(windowsScriptTemplate, p.windowsPreserveList())
	}

	return p.substitute(unixScriptTemplate, p.unixPreserveList())
}

func (p *Plan) substitute(template string, preserve string) string {
	waitSeconds := int(p.WaitTimeout.Seconds())
	if waitSeconds < 1 {
		waitSeconds = 1
	}

	return strings.NewReplacer(
		"{{FORMAT}}", fmt.Sprintf("%d", scriptFormatVersion),
		"{{VERSION}}", p.Version,
		"{{PID}}", fmt.Sprintf("%d", p.HostPID),
		"{{WAIT_LIMIT}}", fmt.Sprintf("%d", waitSeconds),
		"{{TARGET}}", p.quote(p.TargetRoot),
		"{{SOURCE}}", p.quote(p.SourceRoot),
		"{{BACKUP}}", p.quote(p.BackupRoot),
		"{{STAGING}}", p.quote(p.StagingDir),
		"{{RESTART}}", p.quote(p.RestartExec),
		"{{FAILURE_MARKER}}", p.quote(p.FailureMarkerPath),
		"{{APPLIED_MARKER}}", p.quote(p.AppliedMarkerPath),
		"{{PRESERVE}}", preserve,
	).Replace(template)
}

// quote neutralizes the only character that can break out of the template's
// quoting, which differs per dialect.
func (p *Plan) quote(value string) string {
	if p.Platform == "windows" {
		return strings.ReplaceAll(value, `"`, "")
	}

	return strings.ReplaceAll(value, "'", `'\''`)
}

func (p *Plan) unixPreserveList() string {
	quoted := make([]string, 0, len(p.PreservePaths))
	for _, entry := range p.PreservePaths {
		quoted = append(quoted, "'"+strings.ReplaceAll(entry, "'", `'\''`)+"'")
	}

	return strings.Join(quoted, " ")
}

func (p *Plan) windowsPreserveList() string {
	quoted := make([]string, 0, len(p.PreservePaths))
	for _, entry := range p.PreservePaths {
		quoted = append(quoted, `"`+entry+`"`)
	}

	return strings.Join(quoted, " ")
}
