package printer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/workbench-core/internal/probe"
)

func TestNormalizeFields(t *testing.T) {
	got := NormalizeFields(Fields{
		Name:     "  Front desk  ",
		Host:     " 10.0.0.5 ",
		Protocol: "IPP",
		Path:     strPtr("   "),
	})

	assert.Equal(t, "Front desk", got.Name)
	assert.Equal(t, "10.0.0.5", got.Host)
	assert.Equal(t, probe.ProtocolIPP, got.Protocol)
	assert.Equal(t, 631, got.Port)
	assert.Nil(t, got.Path, "blank path is dropped")
}

func TestValidateFields(t *testing.T) {
	valid := Fields{Name: "Label", Host: "10.0.0.5", Protocol: probe.ProtocolRaw9100, Port: 9100}

	tests := []struct {
		name    string
		mutate  func(f *Fields)
		wantErr error
	}{
		{name: "valid", mutate: func(*Fields) {}},
		{name: "empty name", mutate: func(f *Fields) { f.Name = "" }, wantErr: ErrInvalidName},
		{name: "long name", mutate: func(f *Fields) { f.Name = strings.Repeat("n", 101) }, wantErr: ErrInvalidName},
		{name: "100 char name", mutate: func(f *Fields) { f.Name = strings.Repeat("n", 100) }},
		{name: "empty host", mutate: func(f *Fields) { f.Host = "" }, wantErr: ErrInvalidHost},
		{name: "long host", mutate: func(f *Fields) { f.Host = strings.Repeat("h", 201) }, wantErr: ErrInvalidHost},
		{name: "host with scheme", mutate: func(f *Fields) { f.Host = "http://10.0.0.5" }, wantErr: ErrInvalidHost},
		{name: "ipv6 host", mutate: func(f *Fields) { f.Host = "fe80::1" }},
		{name: "zoned ipv6 host", mutate: func(f *Fields) { f.Host = "fe80::1%eth0" }},
		{name: "ipv4 with port", mutate: func(f *Fields) { f.Host = "10.0.0.5:9100" }, wantErr: ErrInvalidHost},
		{name: "hostname with port", mutate: func(f *Fields) { f.Host = "label.local:631" }, wantErr: ErrInvalidHost},
		{name: "bracketed ipv6", mutate: func(f *Fields) { f.Host = "[::1]" }, wantErr: ErrInvalidHost},
		{name: "bracketed ipv6 with port", mutate: func(f *Fields) { f.Host = "[::1]:9100" }, wantErr: ErrInvalidHost},
		{name: "unknown protocol", mutate: func(f *Fields) { f.Protocol = "lpd" }, wantErr: ErrInvalidProtocol},
		{name: "port zero", mutate: func(f *Fields) { f.Port = 0 }, wantErr: ErrInvalidPort},
		{name: "port negative", mutate: func(f *Fields) { f.Port = -1 }, wantErr: ErrInvalidPort},
		{name: "port too high", mutate: func(f *Fields) { f.Port = 65536 }, wantErr: ErrInvalidPort},
		{name: "port max", mutate: func(f *Fields) { f.Port = 65535 }},
		{name: "long path", mutate: func(f *Fields) { f.Path = strPtr("/" + strings.Repeat("p", 200)) }, wantErr: ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)

			err := ValidateFields(f)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errors.Is(err, ErrInvalidPrinter), "every validation error wraps ErrInvalidPrinter")
		})
	}
}

func TestValidateTarget_NameNotRequired(t *testing.T) {
	err := ValidateTarget(Fields{Host: "10.0.0.5", Protocol: probe.ProtocolRaw9100, Port: 9100})
	assert.NoError(t, err)
}

func TestApplyPatch(t *testing.T) {
	base := &Printer{
		ID:       "p-1",
		Name:     "Receipt",
		Host:     "10.0.0.5",
		Protocol: probe.ProtocolRaw9100,
		Port:     9100,
	}

	t.Run("partial fields", func(t *testing.T) {
		got := ApplyPatch(base, Patch{Name: strPtr("  Till  "), Port: intPtr(9101)})

		assert.Equal(t, "Till", got.Name)
		assert.Equal(t, 9101, got.Port)
		assert.Equal(t, "10.0.0.5", got.Host)
		assert.Equal(t, "Receipt", base.Name, "original is untouched")
	})

	t.Run("protocol switch moves default port", func(t *testing.T) {
		ipp := probe.ProtocolIPP
		got := ApplyPatch(base, Patch{Protocol: &ipp, Path: strPtr("/ipp/print")})

		assert.Equal(t, probe.ProtocolIPP, got.Protocol)
		assert.Equal(t, 631, got.Port)
		require.NotNil(t, got.Path)
		assert.Equal(t, "/ipp/print", *got.Path)
	})

	t.Run("protocol switch keeps custom port", func(t *testing.T) {
		custom := base.Clone()
		custom.Port = 4000
		ipp := probe.ProtocolIPP

		got := ApplyPatch(custom, Patch{Protocol: &ipp})
		assert.Equal(t, 4000, got.Port)
	})

	t.Run("empty path clears", func(t *testing.T) {
		withPath := base.Clone()
		withPath.Path = strPtr("/status")

		got := ApplyPatch(withPath, Patch{Path: strPtr("")})
		assert.Nil(t, got.Path)
	})

	t.Run("connected flag", func(t *testing.T) {
		got := ApplyPatch(base, Patch{IsConnected: boolPtr(true)})
		assert.True(t, got.IsConnected)
		assert.False(t, base.IsConnected)
	})

	assert.True(t, Patch{}.IsEmpty())
	assert.False(t, Patch{Port: intPtr(1)}.IsEmpty())
}

func TestGenerateID_Unique(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

func TestUnreachableError(t *testing.T) {
	var err error = &UnreachableError{Result: probe.Result{Method: probe.MethodTCP, ElapsedMs: 2500}}

	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Contains(t, err.Error(), "elapsed=2500ms")

	var ue *UnreachableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, int64(2500), ue.Result.ElapsedMs)
}
