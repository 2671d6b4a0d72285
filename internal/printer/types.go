package printer

import (
	"time"

	"github.com/nerrad567/workbench-core/internal/probe"
)

// Printer is a configured network print endpoint.
// This matches the printers table in migrations/20260310_100000_create_printers.up.sql.
type Printer struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Addressing
	Host     string         `json:"host"`
	Protocol probe.Protocol `json:"protocol"`
	Port     int            `json:"port"`
	Path     *string        `json:"path"` // ipp only

	// Exclusivity: at most one printer in the registry has IsConnected set.
	IsConnected bool       `json:"isConnected"`
	LastUsedAt  *time.Time `json:"lastUsedAt"`

	// Timestamps
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns an independent copy of p.
func (p *Printer) Clone() *Printer {
	if p == nil {
		return nil
	}
	c := *p
	if p.Path != nil {
		path := *p.Path
		c.Path = &path
	}
	if p.LastUsedAt != nil {
		t := *p.LastUsedAt
		c.LastUsedAt = &t
	}
	return &c
}

// Target returns the probe target described by the stored configuration.
func (p *Printer) Target() probe.Target {
	return p.Fields().Target()
}

// Fields returns the editable configuration of p.
func (p *Printer) Fields() Fields {
	return Fields{
		Name:     p.Name,
		Host:     p.Host,
		Protocol: p.Protocol,
		Port:     p.Port,
		Path:     p.Path,
	}
}

// Summary is the compact view of a printer embedded in status responses.
type Summary struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Host        string         `json:"host"`
	Protocol    probe.Protocol `json:"protocol"`
	Port        int            `json:"port"`
	Path        *string        `json:"path,omitempty"`
	IsConnected bool           `json:"isConnected"`
}

// Summary returns the compact view of p.
func (p *Printer) Summary() Summary {
	return Summary{
		ID:          p.ID,
		Name:        p.Name,
		Host:        p.Host,
		Protocol:    p.Protocol,
		Port:        p.Port,
		Path:        p.Path,
		IsConnected: p.IsConnected,
	}
}

// Fields are the caller-supplied attributes of a printer.
type Fields struct {
	Name     string         `json:"name"`
	Host     string         `json:"host"`
	Protocol probe.Protocol `json:"protocol"`
	Port     int            `json:"port"`
	Path     *string        `json:"path,omitempty"`
}

// Target converts f into a probe target. Defaults are applied by the
// probe package.
func (f Fields) Target() probe.Target {
	t := probe.Target{Host: f.Host, Protocol: f.Protocol, Port: f.Port}
	if f.Path != nil {
		t.Path = *f.Path
	}
	return t
}

// CreateInput is the payload for Manager.Create.
type CreateInput struct {
	Fields

	// Force skips the reachability probe and stores the printer regardless.
	Force bool `json:"force,omitempty"`
}

// Patch is a partial update. Nil fields are left unchanged; a non-nil empty
// Path clears the stored path.
type Patch struct {
	Name        *string         `json:"name,omitempty"`
	Host        *string         `json:"host,omitempty"`
	Protocol    *probe.Protocol `json:"protocol,omitempty"`
	Port        *int            `json:"port,omitempty"`
	Path        *string         `json:"path,omitempty"`
	IsConnected *bool           `json:"isConnected,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Host == nil && p.Protocol == nil &&
		p.Port == nil && p.Path == nil && p.IsConnected == nil
}

// Status is a live reachability report. Connected reflects the probe, not
// the stored IsConnected flag; the two can disagree when a connected printer
// is switched off.
type Status struct {
	Connected bool         `json:"connected"`
	Probe     probe.Result `json:"probe"`
	Device    Summary      `json:"device"`
}
