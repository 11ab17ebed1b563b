package regs

import (
	"fmt"
	"log"
	"os"
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// MEM_FILE is the default device exposing physical memory.
const MEM_FILE = "/dev/mem"

type window struct {
	buf  mmap.MMap
	offs uintptr
}

// MMIO is an Interface backed by memory-mapped register windows. Windows are
// mapped once by OpenMMIO and stay mapped until Close.
type MMIO struct {
	dev     string
	windows map[*Block]*window
}

// OpenMMIO maps every block in blocks from dev (normally MEM_FILE).
func OpenMMIO(dev string, blocks []*Block) (*MMIO, error) {
	m := &MMIO{
		dev:     dev,
		windows: make(map[*Block]*window),
	}
	for _, b := range blocks {
		buf, offs, err := mapMem(dev, b.Base, b.Size)
		if err != nil {
			m.Close() // Ignore error, return the mapping one
			return nil, fmt.Errorf("couldn't map %s at %08X: %w", b.Name, b.Base, err)
		}
		log.Printf("Got %s window[%d], offset %d\n", b.Name, len(buf), offs)
		m.windows[b] = &window{buf, offs}
	}
	return m, nil
}

// mapMem opens dev and uses mmap to map a given physical address into our address space.
// Since the mapping has to start at a page boundary, the physical address is rounded down to the
// nearest page boundary. mapMem returns the mapped memory and the offset that should be used to
// access it (=physAddr%pagesize).
func mapMem(dev string, physAddr uintptr, size int) (mmap.MMap, uintptr, error) {
	f, err := os.OpenFile(dev, os.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("couldn't open %s: %w", dev, err)
	}
	defer f.Close() // Ignore error

	pagesize := uintptr(unix.Getpagesize())
	pagemask := ^(pagesize - 1)
	mapAddr := physAddr & pagemask
	size += int(physAddr - mapAddr)
	mm, err := mmap.MapRegion(f, size, mmap.RDWR, 0, int64(mapAddr))
	if err != nil {
		return nil, 0, fmt.Errorf("couldn't map region (%08X, %v): %w", physAddr, size, err)
	}
	return mm, physAddr & (pagesize - 1), nil
}

// Close unmaps every window.
func (m *MMIO) Close() error {
	var err error
	for b, w := range m.windows {
		if te := w.buf.Unmap(); te != nil && err == nil {
			err = te
		}
		delete(m.windows, b)
	}
	return err
}

func (m *MMIO) ptr(f Field) unsafe.Pointer {
	w, ok := m.windows[f.Block]
	if !ok {
		panic(fmt.Sprintf("regs: %v: block not mapped", f))
	}
	i := w.offs + f.Offset
	if int(i)+f.Width > len(w.buf) {
		panic(fmt.Sprintf("regs: %v: offset %d outside window of %d bytes", f, i, len(w.buf)))
	}
	return unsafe.Pointer(&w.buf[i])
}

func (m *MMIO) load(f Field) uint32 {
	p := m.ptr(f)
	switch f.Width {
	case 1:
		return uint32(*(*uint8)(p))
	case 2:
		return uint32(*(*uint16)(p))
	}
	return *(*uint32)(p)
}

func (m *MMIO) store(f Field, v uint32) {
	p := m.ptr(f)
	switch f.Width {
	case 1:
		*(*uint8)(p) = uint8(v)
	case 2:
		*(*uint16)(p) = uint16(v)
	default:
		*(*uint32)(p) = v
	}
}

func (m *MMIO) Read(f Field) uint32 {
	return f.Extract(m.load(f))
}

func (m *MMIO) Write(f Field, v uint32) {
	if f.Whole() {
		m.store(f, v)
		return
	}
	m.store(f, f.Insert(m.load(f), v))
}
