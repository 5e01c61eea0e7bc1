// Package artifact implements the on-disk / in-memory compiled-module
// format consumed by internal/engine: a platform object-file header
// carrying a length-prefixed, msgpack-serialized module metadata blob,
// followed by code symbols and a packed sidecar of function, trampoline
// and dynamic-trampoline pointers.
//
// The actual per-function code generation is an external collaborator;
// this package only defines and parses the container the generator's
// output is shipped in.
package artifact

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/wazergo/runtime/internal/modinfo"
)

// MetadataSymbolName is the symbol whose data section holds the
// MetadataHeader followed by the serialized ModuleInfo. We use our own
// project's name since this is not a drop-in replacement for the
// upstream binary format it was modeled on.
const MetadataSymbolName = "WAZERGO_METADATA"

// ObjectFormat identifies the sniffed platform object container.
type ObjectFormat int

const (
	ObjectFormatUnknown ObjectFormat = iota
	ObjectFormatELF
	ObjectFormatMachO
	ObjectFormatPE
)

// Errors surfaced by loading.
var (
	ErrIncompatibleArtifact = errors.New("incompatible-artifact")
	ErrDeserializeFailed    = errors.New("deserialize-failed")
	ErrNotImplemented       = errors.New("not-implemented")
)

// MetadataHeader is the fixed-length prefix before the serialized
// ModuleInfo in the WAZERGO_METADATA symbol's data.
type MetadataHeader struct {
	// Len is the byte length of the msgpack-encoded ModuleInfo that
	// immediately follows this header.
	Len uint64
	// CompileFeatures is a bitset of the Wasm proposals the compiler
	// enabled when producing this artifact (bulk-memory, threads, ...).
	CompileFeatures uint64
}

const metadataHeaderSize = 16 // 2 x uint64, little-endian, fixed width.

// FunctionBody is one local function's code range inside the object
// image, as recorded in the sidecar.
type FunctionBody struct {
	Ptr uintptr
	Len uint64
}

// Sidecar is the packed
//
//	num_fn:usize ‖ [fn_body_ptr:usize]×num_fn ‖
//	num_tramp:usize ‖ [tramp_ptr:usize]×num_tramp ‖
//	num_dyn:usize ‖ [dyn_ptr:usize]×num_dyn
//
// table following the metadata and code symbols.
type Sidecar struct {
	FuncBodies         []FunctionBody
	CallTrampolines    []uintptr // one per interned signature
	ImportTrampolines  []uintptr // one per imported function
}

// Artifact is the immutable, self-describing product of compiling a
// module. Loading it only requires the artifact bytes plus an engine to
// intern signatures into.
type Artifact struct {
	Format   ObjectFormat
	Header   MetadataHeader
	Module   modinfo.ModuleInfo
	Sidecar  Sidecar
	// raw is the full object-file image, retained for JIT mapping or
	// static linking by the (external) loader that maps code pages.
	raw []byte
}

// SniffFormat inspects the leading magic bytes of an object file image and
// returns the matching ObjectFormat, or ObjectFormatUnknown if none match.
func SniffFormat(data []byte) ObjectFormat {
	switch {
	case len(data) >= 4 && data[0] == 0x7f && data[1] == 'E' && data[2] == 'L' && data[3] == 'F':
		return ObjectFormatELF
	case len(data) >= 4 && (binary.LittleEndian.Uint32(data) == macho.Magic32 ||
		binary.LittleEndian.Uint32(data) == macho.Magic64 ||
		binary.BigEndian.Uint32(data) == macho.Magic32 ||
		binary.BigEndian.Uint32(data) == macho.Magic64 ||
		binary.LittleEndian.Uint32(data) == macho.MagicFat):
		return ObjectFormatMachO
	case len(data) >= 2 && data[0] == 'M' && data[1] == 'Z':
		return ObjectFormatPE
	default:
		return ObjectFormatUnknown
	}
}

// Load parses an object-file image: sniff the magic, locate the metadata
// symbol, deserialize ModuleInfo, and read the sidecar pointer tables. It
// does not map code pages; that remains the external loader's job.
func Load(data []byte) (*Artifact, error) {
	format := SniffFormat(data)
	if format == ObjectFormatUnknown {
		return nil, errors.Wrap(ErrIncompatibleArtifact, "unrecognized object magic")
	}

	symData, err := readMetadataSymbol(format, data)
	if err != nil {
		return nil, err
	}
	if len(symData) < metadataHeaderSize {
		return nil, errors.Wrap(ErrDeserializeFailed, "metadata section shorter than header")
	}

	hdr := MetadataHeader{
		Len:             binary.LittleEndian.Uint64(symData[0:8]),
		CompileFeatures: binary.LittleEndian.Uint64(symData[8:16]),
	}
	body := symData[metadataHeaderSize:]
	if uint64(len(body)) < hdr.Len {
		return nil, errors.Wrapf(ErrDeserializeFailed,
			"metadata length prefix %d exceeds available %d bytes", hdr.Len, len(body))
	}

	var mi modinfo.ModuleInfo
	if err := msgpack.Unmarshal(body[:hdr.Len], &mi); err != nil {
		return nil, errors.Wrap(ErrDeserializeFailed, err.Error())
	}

	sidecar, err := readSidecar(body[hdr.Len:])
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"format":    format,
		"functions": len(sidecar.FuncBodies),
	}).Debug("artifact: loaded")

	return &Artifact{
		Format:  format,
		Header:  hdr,
		Module:  mi,
		Sidecar: *sidecar,
		raw:     data,
	}, nil
}

// readMetadataSymbol locates MetadataSymbolName's data section in the
// given object format. Unsupported sub-formats (Mach-O fat binaries, PE
// import-table-bearing images that embed data in a resource section
// rather than a plain section) fail closed with ErrNotImplemented instead
// of silently returning wrong bytes.
func readMetadataSymbol(format ObjectFormat, data []byte) ([]byte, error) {
	switch format {
	case ObjectFormatELF:
		f, err := elf.NewFile(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(ErrIncompatibleArtifact, err.Error())
		}
		defer f.Close()
		sec := f.Section(".wazergo_metadata")
		if sec == nil {
			return nil, errors.Wrapf(ErrDeserializeFailed, "section .wazergo_metadata not found")
		}
		return sec.Data()
	case ObjectFormatMachO:
		if binary.LittleEndian.Uint32(data) == macho.MagicFat {
			return nil, errors.Wrap(ErrNotImplemented, "fat Mach-O artifacts")
		}
		f, err := macho.NewFile(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(ErrIncompatibleArtifact, err.Error())
		}
		defer f.Close()
		sec := f.Section("__wazergo_metadata")
		if sec == nil {
			return nil, errors.Wrapf(ErrDeserializeFailed, "section __wazergo_metadata not found")
		}
		return sec.Data()
	case ObjectFormatPE:
		f, err := pe.NewFile(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(ErrIncompatibleArtifact, err.Error())
		}
		defer f.Close()
		sec := f.Section(".wzmeta")
		if sec == nil {
			return nil, errors.Wrapf(ErrDeserializeFailed, "section .wzmeta not found")
		}
		return sec.Data()
	default:
		return nil, errors.Wrap(ErrNotImplemented, "unknown object format")
	}
}

func readSidecar(b []byte) (*Sidecar, error) {
	const wordSize = 8 // usize emitted as 64-bit regardless of host pointer width.
	read := func(buf []byte) (uint64, []byte, error) {
		if len(buf) < wordSize {
			return 0, nil, errors.Wrap(ErrDeserializeFailed, "sidecar truncated")
		}
		return binary.LittleEndian.Uint64(buf[:wordSize]), buf[wordSize:], nil
	}
	readPtrs := func(n uint64, buf []byte) ([]uintptr, []byte, error) {
		out := make([]uintptr, n)
		for i := range out {
			v, rest, err := read(buf)
			if err != nil {
				return nil, nil, err
			}
			out[i] = uintptr(v)
			buf = rest
		}
		return out, buf, nil
	}

	numFn, b, err := read(b)
	if err != nil {
		return nil, err
	}
	fnPtrs, b, err := readPtrs(numFn, b)
	if err != nil {
		return nil, err
	}
	numTramp, b, err := read(b)
	if err != nil {
		return nil, err
	}
	trampPtrs, b, err := readPtrs(numTramp, b)
	if err != nil {
		return nil, err
	}
	numDyn, b, err := read(b)
	if err != nil {
		return nil, err
	}
	dynPtrs, _, err := readPtrs(numDyn, b)
	if err != nil {
		return nil, err
	}

	bodies := make([]FunctionBody, len(fnPtrs))
	for i, p := range fnPtrs {
		bodies[i] = FunctionBody{Ptr: p}
	}
	return &Sidecar{
		FuncBodies:        bodies,
		CallTrampolines:   trampPtrs,
		ImportTrampolines: dynPtrs,
	}, nil
}

// Serialize encodes the metadata blob (header + msgpack ModuleInfo) that
// would be embedded at MetadataSymbolName; used by tests and by tooling
// that assembles an artifact's object image.
func Serialize(mi *modinfo.ModuleInfo, compileFeatures uint64) ([]byte, error) {
	body, err := msgpack.Marshal(mi)
	if err != nil {
		return nil, errors.Wrap(err, "marshal module info")
	}
	out := make([]byte, metadataHeaderSize+len(body))
	binary.LittleEndian.PutUint64(out[0:8], uint64(len(body)))
	binary.LittleEndian.PutUint64(out[8:16], compileFeatures)
	copy(out[metadataHeaderSize:], body)
	return out, nil
}

func (f ObjectFormat) String() string {
	switch f {
	case ObjectFormatELF:
		return "elf"
	case ObjectFormatMachO:
		return "macho"
	case ObjectFormatPE:
		return "pe"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}
