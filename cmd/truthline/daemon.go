package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"

	"truthline/internal/config"

	"github.com/spf13/cobra"
)

const (
	launchdLabel = "org.truthline.serve"
	systemdUnit  = "truthline.service"
)

// unitParams fills the service templates.
type unitParams struct {
	Label   string
	Exec    string
	Config  string
	Log     string
	ErrLog  string
	WorkDir string
}

func daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Install or remove truthline as a user service (launchd/systemd)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Write a service file that runs 'truthline serve' at login",
		RunE: func(cmd *cobra.Command, args []string) error {
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}
			cfgPath, err := filepath.Abs(config.ExpandPath(resolveConfigPath()))
			if err != nil {
				return err
			}
			p := unitParams{
				Label:   launchdLabel,
				Exec:    execPath,
				Config:  cfgPath,
				Log:     filepath.Join(config.DefaultConfigDir(), "logs", "truthline.log"),
				ErrLog:  filepath.Join(config.DefaultConfigDir(), "logs", "truthline-error.log"),
				WorkDir: config.DefaultConfigDir(),
			}
			target, tmpl, err := unitTarget()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(p.Log), 0o755); err != nil {
				return err
			}
			if err := writeUnit(target, tmpl, p); err != nil {
				return err
			}
			fmt.Printf("Daemon installed: %s\n", target)
			printDaemonHints(target)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the service file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _, err := unitTarget()
			if err != nil {
				return err
			}
			if err := os.Remove(target); err != nil {
				return fmt.Errorf("remove %s: %w", target, err)
			}
			fmt.Printf("Daemon uninstalled: %s\n", target)
			return nil
		},
	})
	return cmd
}

// unitTarget returns where the service file lives on this OS and the
// template that renders it.
func unitTarget() (string, *template.Template, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil, err
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist"), launchdTemplate, nil
	case "linux":
		return filepath.Join(home, ".config", "systemd", "user", systemdUnit), systemdTemplate, nil
	default:
		return "", nil, fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", runtime.GOOS)
	}
}

func writeUnit(path string, tmpl *template.Template, p unitParams) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return fmt.Errorf("render service file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func printDaemonHints(target string) {
	if runtime.GOOS == "darwin" {
		fmt.Printf("To start: launchctl load %s\n", target)
		fmt.Printf("To stop:  launchctl unload %s\n", target)
		return
	}
	fmt.Println("To start:  systemctl --user start truthline")
	fmt.Println("To enable: systemctl --user enable truthline")
	fmt.Println("Logs:      journalctl --user -u truthline -f")
}

var launchdTemplate = template.Must(template.New("launchd").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.Exec}}</string>
        <string>serve</string>
        <string>--config</string>
        <string>{{.Config}}</string>
    </array>
    <key>WorkingDirectory</key>
    <string>{{.WorkDir}}</string>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{.Log}}</string>
    <key>StandardErrorPath</key>
    <string>{{.ErrLog}}</string>
</dict>
</plist>
`))

var systemdTemplate = template.Must(template.New("systemd").Parse(`[Unit]
Description=truthline fact-check webhook server
After=network-online.target

[Service]
Type=simple
WorkingDirectory={{.WorkDir}}
ExecStart={{.Exec}} serve --config {{.Config}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`))
