package printer

import (
	"fmt"
	"net/netip"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nerrad567/workbench-core/internal/probe"
)

// Validation limits.
const (
	maxNameLength = 100
	maxHostLength = 200
	maxPathLength = 200
	maxPort       = 65535
)

// NormalizeFields trims whitespace, applies the protocol's default port
// when Port is zero and drops a blank path. It does not validate.
func NormalizeFields(f Fields) Fields {
	f.Name = strings.TrimSpace(f.Name)
	f.Host = strings.TrimSpace(f.Host)
	f.Protocol = probe.Protocol(strings.ToLower(strings.TrimSpace(string(f.Protocol))))
	if f.Port == 0 {
		f.Port = f.Protocol.DefaultPort()
	}
	if f.Path != nil {
		path := strings.TrimSpace(*f.Path)
		if path == "" {
			f.Path = nil
		} else {
			f.Path = &path
		}
	}
	return f
}

// ValidateFields checks a normalised set of printer fields.
// Returns the first failure found, wrapping one of the ErrInvalid* sentinels.
func ValidateFields(f Fields) error {
	if err := ValidateName(f.Name); err != nil {
		return err
	}
	return ValidateTarget(f)
}

// ValidateTarget checks everything except the name. Used for ad-hoc probes
// of unsaved configurations.
func ValidateTarget(f Fields) error {
	if err := ValidateHost(f.Host); err != nil {
		return err
	}
	if err := ValidateProtocol(f.Protocol); err != nil {
		return err
	}
	if err := ValidatePort(f.Port); err != nil {
		return err
	}
	if f.Path != nil {
		if err := ValidatePath(*f.Path); err != nil {
			return err
		}
	}
	return nil
}

// ValidateName checks if a printer name is valid.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateHost checks a hostname or IP literal. Schemes, paths and ports
// belong in their own fields. A colon is only allowed as part of an
// unbracketed IPv6 address; the port is joined on at dial time.
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidHost)
	}
	if utf8.RuneCountInString(host) > maxHostLength {
		return fmt.Errorf("%w: host exceeds %d characters", ErrInvalidHost, maxHostLength)
	}
	if strings.ContainsAny(host, " \t\r\n/?#@[]") {
		return fmt.Errorf("%w: %q is not a bare hostname or address", ErrInvalidHost, host)
	}
	if strings.Contains(host, ":") {
		if addr, err := netip.ParseAddr(host); err != nil || !addr.Is6() {
			return fmt.Errorf("%w: %q looks like host:port; set the port separately", ErrInvalidHost, host)
		}
	}
	return nil
}

// ValidateProtocol checks if a protocol is supported.
func ValidateProtocol(p probe.Protocol) error {
	if p.Valid() {
		return nil
	}
	return fmt.Errorf("%w: %q (want ipp or raw9100)", ErrInvalidProtocol, p)
}

// ValidatePort checks the port is in (0, 65535].
func ValidatePort(port int) error {
	if port <= 0 || port > maxPort {
		return fmt.Errorf("%w: %d out of range 1-%d", ErrInvalidPort, port, maxPort)
	}
	return nil
}

// ValidatePath checks the optional ipp status path.
func ValidatePath(path string) error {
	if utf8.RuneCountInString(path) > maxPathLength {
		return fmt.Errorf("%w: path exceeds %d characters", ErrInvalidPath, maxPathLength)
	}
	return nil
}

// ApplyPatch merges patch into a copy of p and normalises the result.
// The caller validates the merged fields.
func ApplyPatch(p *Printer, patch Patch) *Printer {
	merged := p.Clone()
	f := merged.Fields()

	if patch.Name != nil {
		f.Name = *patch.Name
	}
	if patch.Host != nil {
		f.Host = *patch.Host
	}
	if patch.Protocol != nil {
		f.Protocol = *patch.Protocol
		// A protocol switch without an explicit port moves to the new default.
		if patch.Port == nil && f.Port == p.Protocol.DefaultPort() {
			f.Port = 0
		}
	}
	if patch.Port != nil {
		f.Port = *patch.Port
	}
	if patch.Path != nil {
		f.Path = patch.Path
	}

	f = NormalizeFields(f)
	merged.Name, merged.Host, merged.Protocol, merged.Port, merged.Path = f.Name, f.Host, f.Protocol, f.Port, f.Path
	if patch.IsConnected != nil {
		merged.IsConnected = *patch.IsConnected
	}
	return merged
}

// GenerateID creates a new UUID for a printer.
func GenerateID() string {
	return uuid.New().String()
}
