package emu_test

import (
	"bytes"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

var _ = Describe("Syscall Handler", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		stdout  *bytes.Buffer
		stderr  *bytes.Buffer
		handler *emu.DefaultSyscallHandler
	)

	negErrno := func(errno int64) uint64 {
		return uint64(-errno)
	}

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		memory = emu.NewMemory()
		stdout = new(bytes.Buffer)
		stderr = new(bytes.Buffer)
		handler = emu.NewDefaultSyscallHandler(regFile, memory, stdout, stderr)
	})

	Describe("Unknown syscall", func() {
		It("should return ENOSYS for unknown syscall numbers", func() {
			regFile.WriteReg(emu.RegA7, 999)

			result := handler.Handle()

			Expect(result.Exited).To(BeFalse())
			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(negErrno(emu.ENOSYS)))
		})
	})

	Describe("Exit syscall", func() {
		It("should exit with the code in a0", func() {
			regFile.WriteReg(emu.RegA7, emu.SyscallExit)
			regFile.WriteReg(emu.RegA0, 42)

			result := handler.Handle()

			Expect(result.Exited).To(BeTrue())
			Expect(result.ExitCode).To(Equal(int64(42)))
		})

		It("should treat exit_group like exit", func() {
			regFile.WriteReg(emu.RegA7, emu.SyscallExitGroup)
			regFile.WriteReg(emu.RegA0, 3)

			result := handler.Handle()

			Expect(result.Exited).To(BeTrue())
			Expect(result.ExitCode).To(Equal(int64(3)))
		})
	})

	Describe("Write syscall", func() {
		BeforeEach(func() {
			memory.LoadProgram(0x1000, []byte("hello"))
			regFile.WriteReg(emu.RegA7, emu.SyscallWrite)
			regFile.WriteReg(emu.RegA1, 0x1000)
			regFile.WriteReg(emu.RegA2, 5)
		})

		It("should write the buffer to stdout", func() {
			regFile.WriteReg(emu.RegA0, 1)

			result := handler.Handle()

			Expect(result.Exited).To(BeFalse())
			Expect(stdout.String()).To(Equal("hello"))
			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(uint64(5)))
		})

		It("should write the buffer to stderr", func() {
			regFile.WriteReg(emu.RegA0, 2)

			handler.Handle()

			Expect(stderr.String()).To(Equal("hello"))
			Expect(stdout.Len()).To(BeZero())
		})

		It("should return EBADF for other descriptors", func() {
			regFile.WriteReg(emu.RegA0, 42)

			handler.Handle()

			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(negErrno(emu.EBADF)))
		})

		It("should return EIO when the writer fails", func() {
			handler = emu.NewDefaultSyscallHandler(regFile, memory, failingWriter{}, stderr)
			regFile.WriteReg(emu.RegA0, 1)

			handler.Handle()

			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(negErrno(emu.EIO)))
		})
	})

	Describe("Read syscall", func() {
		BeforeEach(func() {
			regFile.WriteReg(emu.RegA7, emu.SyscallRead)
			regFile.WriteReg(emu.RegA0, 0)
			regFile.WriteReg(emu.RegA1, 0x2000)
			regFile.WriteReg(emu.RegA2, 16)
		})

		It("should copy stdin into memory", func() {
			handler.SetStdin(strings.NewReader("abc"))

			handler.Handle()

			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(uint64(3)))
			Expect(memory.Read8(0x2000)).To(Equal(uint8('a')))
			Expect(memory.Read8(0x2002)).To(Equal(uint8('c')))
		})

		It("should read end of file without stdin", func() {
			handler.Handle()
			Expect(regFile.ReadReg(emu.RegA0)).To(BeZero())
		})

		It("should return EBADF for descriptors other than stdin", func() {
			regFile.WriteReg(emu.RegA0, 1)

			handler.Handle()

			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(negErrno(emu.EBADF)))
		})
	})
})
