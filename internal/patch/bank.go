package patch

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// BankEntry is one named patch.
type BankEntry struct {
	Name  string
	Patch Patch
}

// Bank is an ordered list of named patches.
type Bank struct {
	Entries []BankEntry
}

// Find returns the patch called name.
func (b *Bank) Find(name string) (Patch, bool) {
	for _, e := range b.Entries {
		if e.Name == name {
			return e.Patch, true
		}
	}
	return Patch{}, false
}

// Put replaces the patch called name, or appends it.
func (b *Bank) Put(name string, p Patch) {
	for i := range b.Entries {
		if b.Entries[i].Name == name {
			b.Entries[i].Patch = p
			return
		}
	}
	b.Entries = append(b.Entries, BankEntry{Name: name, Patch: p})
}

// Names lists the entries in order.
func (b *Bank) Names() []string {
	names := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		names[i] = e.Name
	}
	return names
}

type bankFile struct {
	Patch []bankFileEntry `toml:"patch"`
}

type bankFileEntry struct {
	Name  string `toml:"name"`
	Patch Tree   `toml:"patch"`
}

// WriteBank encodes b as TOML.
func WriteBank(w io.Writer, b *Bank) error {
	out := bankFile{Patch: make([]bankFileEntry, len(b.Entries))}
	for i := range b.Entries {
		out.Patch[i] = bankFileEntry{Name: b.Entries[i].Name, Patch: b.Entries[i].Patch.Encode()}
	}
	return toml.NewEncoder(w).Encode(out)
}

// ReadBank decodes a TOML bank. Each entry holds "name" and a nested "patch"
// table; entries written by older versions carry "version" and the legacy
// fields directly. Missing parameters are logged to logger when non-nil.
func ReadBank(r io.Reader, logger *slog.Logger) (*Bank, error) {
	var raw struct {
		Patch []Tree `toml:"patch"`
	}
	if _, err := toml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode patch bank: %w", err)
	}
	b := &Bank{Entries: make([]BankEntry, 0, len(raw.Patch))}
	for i, entry := range raw.Patch {
		name, _ := entry["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("patch bank entry %d has no name", i)
		}
		tree := entry
		if _, legacy := entry["version"]; !legacy {
			sub, ok := entry["patch"].(Tree)
			if !ok {
				return nil, fmt.Errorf("patch bank entry %q has no patch table", name)
			}
			tree = sub
		}
		p, missing, err := Decode(tree)
		if err != nil {
			return nil, fmt.Errorf("patch %q: %w", name, err)
		}
		if logger != nil && len(missing) > 0 {
			for _, id := range missing {
				logger.Warn("patch has no param, using default", "patch", name, "param", id.String())
			}
		}
		b.Entries = append(b.Entries, BankEntry{Name: name, Patch: p})
	}
	return b, nil
}

// LoadBankFile reads a bank from path.
func LoadBankFile(path string, logger *slog.Logger) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := ReadBank(f, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// SaveBankFile writes b to path, replacing any existing file.
func SaveBankFile(path string, b *Bank) error {
	var buf bytes.Buffer
	if err := WriteBank(&buf, b); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Marshal encodes a single patch as TOML text.
func Marshal(p *Patch) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(p.Encode()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a single patch from TOML text.
func Unmarshal(data []byte) (Patch, error) {
	var t Tree
	if _, err := toml.Decode(string(data), &t); err != nil {
		return Patch{}, fmt.Errorf("decode patch: %w", err)
	}
	p, _, err := Decode(t)
	return p, err
}
