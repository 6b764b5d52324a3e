package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"xcscraper/pkg/config"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeQuotes(message), escapeQuotes(title))
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("xcscraper").Show($toast)
	`, title, message)

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

func platformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

// Notifier sends desktop notifications about finished crawls
type Notifier struct {
	sender NotificationSender
	cfg    config.NotificationConfig
}

// NewNotifier creates a Notifier for the current platform
func NewNotifier(cfg config.NotificationConfig) *Notifier {
	return &Notifier{sender: platformSender(), cfg: cfg}
}

// NewNotifierWithSender creates a Notifier that delivers through sender
func NewNotifierWithSender(cfg config.NotificationConfig, sender NotificationSender) *Notifier {
	return &Notifier{sender: sender, cfg: cfg}
}

// SendSuccess announces a completed crawl
func (n *Notifier) SendSuccess(title, message string) {
	printf("\n%s: %s\n", Green(title), Green(message))
	if n.cfg.Enabled && n.cfg.OnComplete {
		n.send(title, message)
	}
}

// SendError announces a failed crawl
func (n *Notifier) SendError(title, message string) {
	eprintf("\n%s: %s\n", Red(title), Red(message))
	if n.cfg.Enabled && n.cfg.OnError {
		n.send(title, message)
	}
}

func (n *Notifier) send(title, message string) {
	if n.sender == nil {
		return
	}
	// Desktop notifications are best effort
	_ = n.sender.Send(title, message)
}
