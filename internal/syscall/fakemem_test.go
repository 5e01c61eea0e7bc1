package syscall

// fakeMemory is a flat byte slice standing in for an instance's linear
// memory, used so dispatcher tests can exercise guest-pointer plumbing
// without an engine.Instance.
type fakeMemory struct {
	buf []byte
}

func newFakeMemory(size int) *fakeMemory { return &fakeMemory{buf: make([]byte, size)} }

func (m *fakeMemory) Read(offset, length uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.buf)) {
		return nil, false
	}
	out := make([]byte, length)
	copy(out, m.buf[offset:end])
	return out, true
}

func (m *fakeMemory) Write(offset uint32) ([]byte, bool) {
	if uint64(offset) > uint64(len(m.buf)) {
		return nil, false
	}
	return m.buf[offset:], true
}

func (m *fakeMemory) ReadUint32(offset uint32) (uint32, bool) {
	b, ok := m.Read(offset, 4)
	if !ok {
		return 0, false
	}
	return le32(b), true
}

func (m *fakeMemory) WriteUint32(offset, value uint32) bool {
	buf, ok := m.Write(offset)
	if !ok || len(buf) < 4 {
		return false
	}
	buf[0] = byte(value)
	buf[1] = byte(value >> 8)
	buf[2] = byte(value >> 16)
	buf[3] = byte(value >> 24)
	return true
}

func (m *fakeMemory) ReadUint64(offset uint32) (uint64, bool) {
	lo, ok := m.ReadUint32(offset)
	if !ok {
		return 0, false
	}
	hi, ok := m.ReadUint32(offset + 4)
	if !ok {
		return 0, false
	}
	return uint64(lo) | uint64(hi)<<32, true
}

func (m *fakeMemory) WriteUint64(offset uint32, value uint64) bool {
	return m.WriteUint32(offset, uint32(value)) && m.WriteUint32(offset+4, uint32(value>>32))
}

func (m *fakeMemory) putIovec(entryOffset, dataOffset, length uint32) {
	m.WriteUint32(entryOffset, dataOffset)
	m.WriteUint32(entryOffset+4, length)
}
