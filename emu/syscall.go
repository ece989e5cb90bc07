package emu

import "io"

// RISC-V Linux syscall numbers.
const (
	SyscallRead      uint64 = 63 // read(fd, buf, count)
	SyscallWrite     uint64 = 64 // write(fd, buf, count)
	SyscallExit      uint64 = 93 // exit(status)
	SyscallExitGroup uint64 = 94 // exit_group(status)
)

// ABI register numbers used by the syscall convention.
const (
	RegA0 uint8 = 10
	RegA1 uint8 = 11
	RegA2 uint8 = 12
	RegA7 uint8 = 17
)

// Linux error codes.
const (
	EBADF  = 9  // Bad file descriptor
	ENOSYS = 38 // Function not implemented
	EIO    = 5  // I/O error
)

// maxTransfer bounds a single read or write so that a garbage count cannot
// allocate unbounded memory.
const maxTransfer = 1 << 20

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	// Exited is true if the syscall caused program termination.
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64
}

// SyscallHandler is the interface for handling ecall.
type SyscallHandler interface {
	// Handle executes the syscall indicated by the register file state.
	// RISC-V Linux syscall convention:
	//   - Syscall number in a7 (x17)
	//   - Arguments in a0-a5 (x10-x15)
	//   - Return value in a0
	Handle() SyscallResult
}

// DefaultSyscallHandler supports read, write and exit on the standard
// streams. Every other syscall fails with ENOSYS.
type DefaultSyscallHandler struct {
	regFile *RegFile
	memory  *Memory
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// NewDefaultSyscallHandler creates a default syscall handler.
func NewDefaultSyscallHandler(regFile *RegFile, memory *Memory, stdout, stderr io.Writer) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{
		regFile: regFile,
		memory:  memory,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// SetStdin sets the stdin reader for the syscall handler.
func (h *DefaultSyscallHandler) SetStdin(stdin io.Reader) {
	h.stdin = stdin
}

// Handle executes the syscall indicated by the register file state.
func (h *DefaultSyscallHandler) Handle() SyscallResult {
	switch h.regFile.ReadReg(RegA7) {
	case SyscallRead:
		h.handleRead()
	case SyscallWrite:
		h.handleWrite()
	case SyscallExit, SyscallExitGroup:
		return SyscallResult{Exited: true, ExitCode: int64(h.regFile.ReadReg(RegA0))}
	default:
		h.setError(ENOSYS)
	}
	return SyscallResult{}
}

func (h *DefaultSyscallHandler) args() (fd, buf, count uint64) {
	count = h.regFile.ReadReg(RegA2)
	if count > maxTransfer {
		count = maxTransfer
	}
	return h.regFile.ReadReg(RegA0), h.regFile.ReadReg(RegA1), count
}

// handleRead reads from stdin (fd 0) into guest memory. A missing stdin
// reads as end of file.
func (h *DefaultSyscallHandler) handleRead() {
	fd, bufPtr, count := h.args()
	if fd != 0 {
		h.setError(EBADF)
		return
	}
	if h.stdin == nil {
		h.regFile.WriteReg(RegA0, 0)
		return
	}

	buf := make([]byte, count)
	n, err := h.stdin.Read(buf)
	if err != nil && n == 0 {
		h.regFile.WriteReg(RegA0, 0)
		return
	}

	h.memory.LoadProgram(bufPtr, buf[:n])
	h.regFile.WriteReg(RegA0, uint64(n))
}

// handleWrite writes guest memory to stdout (fd 1) or stderr (fd 2).
func (h *DefaultSyscallHandler) handleWrite() {
	fd, bufPtr, count := h.args()

	var writer io.Writer
	switch fd {
	case 1:
		writer = h.stdout
	case 2:
		writer = h.stderr
	}
	if writer == nil {
		h.setError(EBADF)
		return
	}

	buf := make([]byte, count)
	for i := range buf {
		buf[i] = h.memory.Read8(bufPtr + uint64(i))
	}

	n, err := writer.Write(buf)
	if err != nil {
		h.setError(EIO)
		return
	}
	h.regFile.WriteReg(RegA0, uint64(n))
}

// setError sets a0 to -errno (as two's complement).
func (h *DefaultSyscallHandler) setError(errno int) {
	h.regFile.WriteReg(RegA0, uint64(-int64(errno)))
}
