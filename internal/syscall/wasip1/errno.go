// Package wasip1 carries the guest-visible WASI preview1 errno vocabulary
// and the fixed mapping from this runtime's internal error kinds onto it.
//
// Grounded on imports/wasi_snapshot_preview1/errno.go: Errno is a flat
// uint32 enum (not uint16) for parity with wasm.ValueType, and POSIX
// symbol names are preferred over WASI's own prose names.
package wasip1

import "github.com/wazergo/runtime/internal/vfs"

// Errno is the WASI preview1 error code type.
type Errno = uint32

const (
	ErrnoSuccess Errno = iota
	Errno2big
	ErrnoAcces
	ErrnoAddrinuse
	ErrnoAddrnotavail
	ErrnoAfnosupport
	ErrnoAgain
	ErrnoAlready
	ErrnoBadf
	ErrnoBadmsg
	ErrnoBusy
	ErrnoCanceled
	ErrnoChild
	ErrnoConnaborted
	ErrnoConnrefused
	ErrnoConnreset
	ErrnoDeadlk
	ErrnoDestaddrreq
	ErrnoDom
	ErrnoDquot
	ErrnoExist
	ErrnoFault
	ErrnoFbig
	ErrnoHostunreach
	ErrnoIdrm
	ErrnoIlseq
	ErrnoInprogress
	ErrnoIntr
	ErrnoInval
	ErrnoIo
	ErrnoIsconn
	ErrnoIsdir
	ErrnoLoop
	ErrnoMfile
	ErrnoMlink
	ErrnoMsgsize
	ErrnoMultihop
	ErrnoNametoolong
	ErrnoNetdown
	ErrnoNetreset
	ErrnoNetunreach
	ErrnoNfile
	ErrnoNobufs
	ErrnoNodev
	ErrnoNoent
	ErrnoNoexec
	ErrnoNolck
	ErrnoNolink
	ErrnoNomem
	ErrnoNomsg
	ErrnoNoprotoopt
	ErrnoNospc
	ErrnoNosys
	ErrnoNotconn
	ErrnoNotdir
	ErrnoNotempty
	ErrnoNotrecoverable
	ErrnoNotsock
	ErrnoNotsup
	ErrnoNotty
	ErrnoNxio
	ErrnoOverflow
	ErrnoOwnerdead
	ErrnoPerm
	ErrnoPipe
	ErrnoProto
	ErrnoProtonosupport
	ErrnoPrototype
	ErrnoRange
	ErrnoRofs
	ErrnoSpipe
	ErrnoSrch
	ErrnoStale
	ErrnoTimedout
	ErrnoTxtbsy
	ErrnoXdev
	ErrnoNotcapable
)

// FromVFSKind maps vfs.ErrKind to the fixed guest errno. The mapping is
// total: every kind produces some errno, never a panic or zero value.
func FromVFSKind(kind vfs.ErrKind) Errno {
	switch kind {
	case vfs.KindNotFound:
		return ErrnoNoent
	case vfs.KindNotDir:
		return ErrnoNotdir
	case vfs.KindIsDir:
		return ErrnoIsdir
	case vfs.KindExists, vfs.KindAlreadyExists:
		return ErrnoExist
	case vfs.KindReadOnly:
		return ErrnoRofs
	case vfs.KindNotSupported:
		return ErrnoNosys
	case vfs.KindInvalidInput:
		return ErrnoInval
	case vfs.KindDirNotEmpty:
		return ErrnoNotempty
	case vfs.KindCrossDevice:
		return ErrnoXdev
	case vfs.KindPermissionDenied:
		return ErrnoPerm
	case vfs.KindNameTooLong:
		return ErrnoNametoolong
	case vfs.KindNoSpace:
		return ErrnoNospc
	case vfs.KindTimedOut:
		return ErrnoTimedout
	case vfs.KindIO:
		return ErrnoIo
	default:
		return ErrnoIo
	}
}

// FromError maps any error into a guest errno: *vfs.Error values use
// FromVFSKind, anything else is treated as an opaque I/O failure.
func FromError(err error) Errno {
	if err == nil {
		return ErrnoSuccess
	}
	return FromVFSKind(vfs.KindOf(err))
}
