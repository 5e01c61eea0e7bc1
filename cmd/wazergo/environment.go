package main

import (
	"os"
	"strings"

	"github.com/wazergo/runtime/internal/journal"
	"github.com/wazergo/runtime/internal/memory"
	"github.com/wazergo/runtime/internal/netrule"
	"github.com/wazergo/runtime/internal/sysnet"
	"github.com/wazergo/runtime/internal/syscall"
	"github.com/wazergo/runtime/internal/vfs"
	"github.com/wazergo/runtime/internal/vfs/hostfs"
	"github.com/wazergo/runtime/internal/vfs/memfs"
	"github.com/wazergo/runtime/internal/wasihost"
)

// environment is everything a Dispatcher needs, assembled once per CLI
// invocation from the persistent --mount/--net/--journal flags.
type environment struct {
	mount *vfs.MountTable
	rules *netrule.RuleSet // nil if --net was not given: every socket call fails closed
	log   *journal.Log     // nil if --journal was not given
	mem   *memory.Memory
	guest *wasihost.GuestMemory
}

// buildEnvironment mounts every --mount flag onto a fresh table rooted at
// an empty memfs (so an unmounted guest path fails closed as not-found
// rather than reaching a real directory by accident), parses --net into a
// RuleSet, and opens --journal if given.
func buildEnvironment() (*environment, error) {
	mount := vfs.NewMountTable(memfs.New())
	for _, spec := range mountFlags {
		hostPath, guestPath, readOnly := parseMountFlag(spec)
		fs, err := hostfs.New(hostPath, readOnly)
		if err != nil {
			return nil, err
		}
		flags := vfs.MountFlagNone
		if readOnly {
			flags = vfs.MountFlagReadOnly
		}
		if _, err := mount.Mount(guestPath, fs, flags); err != nil {
			return nil, err
		}
	}

	var rules *netrule.RuleSet
	if netRuleset != "" {
		r, err := netrule.Parse(netRuleset)
		if err != nil {
			return nil, err
		}
		rules = r
	}

	var log *journal.Log
	if journalPath != "" {
		l, err := journal.Open(journalPath)
		if err != nil {
			return nil, err
		}
		log = l
	}

	// One page (64KiB) is enough linear memory for the string/pointer
	// arguments a probe or a tiny guest module passes; --mount/--net
	// targets the filesystem and network surface, not memory sizing.
	mem, err := memory.New(memory.StyleDynamic, memory.Owned, 1, 16, 0, 0)
	if err != nil {
		return nil, err
	}

	return &environment{
		mount: mount,
		rules: rules,
		log:   log,
		mem:   mem,
		guest: wasihost.NewGuestMemory(mem),
	}, nil
}

func (e *environment) Close() {
	if e.log != nil {
		_ = e.log.Close()
	}
}

// newDispatcher wires this environment's mount table, rules, and journal
// (plus a fresh per-instance descriptor table and the real OS dialer)
// into a Dispatcher ready to hand to wasihost.New.
func (e *environment) newDispatcher() *syscall.Dispatcher {
	fds := syscall.NewTable(os.Stdin, os.Stdout, os.Stderr)
	d := syscall.NewDispatcher(e.mount, fds, e.guest, e.rules, sysnet.New(sysnet.Config{}))
	d.Journal = e.log
	return d
}

// parseMountFlag splits "<hostdir>[:<guestpath>][:ro]", matching cmd/wazero's
// own mount-flag grammar. guestPath defaults to "/" + the host directory's
// base name is NOT inferred here (unlike cmd/wazero's wasm-path inference,
// which has no analogue without a linear guest filesystem namespace tied to
// an imported module's own path expectations): an omitted guest path mounts
// at "/".
func parseMountFlag(spec string) (hostPath, guestPath string, readOnly bool) {
	if trimmed := strings.TrimSuffix(spec, ":ro"); trimmed != spec {
		spec, readOnly = trimmed, true
	}
	guestPath = "/"
	if idx := strings.LastIndexByte(spec, ':'); idx != -1 {
		hostPath, guestPath = spec[:idx], spec[idx+1:]
		return hostPath, guestPath, readOnly
	}
	return spec, guestPath, readOnly
}
