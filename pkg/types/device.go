// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the domain and configuration types shared by the
// conversion pipeline and its CLI.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// Filesystem names a volume filesystem as reported by the host
// (e.g. "NTFS", "FAT32", "exFAT").
type Filesystem string

const (
	FAT   Filesystem = "FAT"
	FAT32 Filesystem = "FAT32"
	NTFS  Filesystem = "NTFS"
	ExFAT Filesystem = "exFAT"
)

// SupportedFilesystems returns the fixed list of conversion targets in
// display order.
func SupportedFilesystems() []Filesystem {
	return []Filesystem{NTFS, FAT32, ExFAT, FAT}
}

// ParseFilesystem maps a user- or host-supplied label onto a supported
// target, ignoring case. It fails for anything outside SupportedFilesystems.
func ParseFilesystem(s string) (Filesystem, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for _, fs := range SupportedFilesystems() {
		if fs.Upper() == want {
			return fs, nil
		}
	}
	return "", NewError(KindUnsupportedFilesystem, "", fmt.Sprintf("unsupported target filesystem %q", s), nil)
}

// Upper returns the uppercase label used for comparisons.
func (f Filesystem) Upper() string {
	return strings.ToUpper(string(f))
}

// IsFATFamily reports whether f is FAT or FAT32. The two are treated as
// equivalent by the planner.
func (f Filesystem) IsFATFamily() bool {
	switch f.Upper() {
	case "FAT", "FAT32":
		return true
	}
	return false
}

// Device is a point-in-time snapshot of a removable volume. It is queried
// fresh for each operation and never cached.
type Device struct {
	// Identifier is the canonical drive designator (e.g. "E:").
	Identifier string `json:"identifier" yaml:"identifier"`

	// Filesystem is the label the host reports for the volume.
	Filesystem Filesystem `json:"filesystem" yaml:"filesystem"`

	// VolumeLabel is the user-visible volume name.
	VolumeLabel string `json:"volume_label" yaml:"volume_label"`

	TotalBytes uint64 `json:"total_bytes" yaml:"total_bytes"`
	UsedBytes  uint64 `json:"used_bytes" yaml:"used_bytes"`
	FreeBytes  uint64 `json:"free_bytes" yaml:"free_bytes"`

	// Removable is true for volumes the host classifies as removable media.
	Removable bool `json:"removable" yaml:"removable"`
}

// NormalizeIdentifier returns the canonical "LETTER:" form of a drive
// designator. It accepts "e", "E", "e:" and "E:" and surrounding spaces.
func NormalizeIdentifier(s string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case len(id) == 1:
		id += ":"
	case len(id) == 2 && id[1] == ':':
	default:
		return "", NewError(KindInvalidIdentifier, s, fmt.Sprintf("invalid drive identifier %q", s), nil)
	}
	if id[0] < 'A' || id[0] > 'Z' {
		return "", NewError(KindInvalidIdentifier, s, fmt.Sprintf("invalid drive identifier %q", s), nil)
	}
	return id, nil
}

// RootPath returns the root directory of a canonical identifier ("E:" -> `E:\`).
func RootPath(id string) string {
	return id + `\`
}

// Letter returns the drive letter of a canonical identifier ("E:" -> "E").
func Letter(id string) string {
	return strings.TrimSuffix(id, ":")
}

// ConversionRequest asks for device to be converted to Target.
type ConversionRequest struct {
	Device string     `json:"device" yaml:"device"`
	Target Filesystem `json:"target" yaml:"target"`
}

// Validate normalizes the device identifier and the target filesystem in
// place. It is called once at entry; later stages assume canonical values.
func (r *ConversionRequest) Validate() error {
	id, err := NormalizeIdentifier(r.Device)
	if err != nil {
		return err
	}
	fs, err := ParseFilesystem(string(r.Target))
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Device = id
		}
		return err
	}
	r.Device = id
	r.Target = fs
	return nil
}
