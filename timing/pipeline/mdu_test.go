package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/timing/pipeline"
)

var _ = Describe("UnitQueue", func() {
	var q *pipeline.UnitQueue

	BeforeEach(func() {
		q = pipeline.NewUnitQueue("mdu", 3)
	})

	accept := func(tag, epoch, latency uint64) bool {
		uop := &pipeline.MicroOp{Tag: tag, Epoch: epoch}
		return q.Accept(uop, pipeline.ExecutionResult{Tag: tag}, latency)
	}

	It("should write back after the latency", func() {
		accept(1, 0, 3)

		_, ok := q.Tick()
		Expect(ok).To(BeFalse())
		_, ok = q.Tick()
		Expect(ok).To(BeFalse())
		r, ok := q.Tick()
		Expect(ok).To(BeTrue())
		Expect(r.Tag).To(Equal(uint64(1)))
		Expect(q.Len()).To(BeZero())
	})

	It("should write back the smallest ready tag first", func() {
		accept(7, 0, 2)
		accept(3, 0, 1)
		accept(5, 0, 2)

		r, _ := q.Tick()
		Expect(r.Tag).To(Equal(uint64(3)))

		r, _ = q.Tick()
		Expect(r.Tag).To(Equal(uint64(5)))

		r, ok := q.Tick()
		Expect(ok).To(BeTrue())
		Expect(r.Tag).To(Equal(uint64(7)))
	})

	It("should refuse operations beyond its capacity", func() {
		Expect(accept(1, 0, 5)).To(BeTrue())
		Expect(accept(2, 0, 5)).To(BeTrue())
		Expect(accept(3, 0, 5)).To(BeTrue())
		Expect(q.CanAccept()).To(BeFalse())
		Expect(accept(4, 0, 5)).To(BeFalse())
	})

	It("should drop flushed operations without a result", func() {
		accept(1, 0, 1)
		accept(2, 1, 1)
		accept(3, 2, 1)

		Expect(q.Flush(1)).To(Equal(2))

		r, ok := q.Tick()
		Expect(ok).To(BeTrue())
		Expect(r.Tag).To(Equal(uint64(1)))
		_, ok = q.Tick()
		Expect(ok).To(BeFalse())
	})

	It("should empty on Reset", func() {
		accept(1, 0, 4)
		q.Reset()
		Expect(q.Len()).To(BeZero())
		Expect(q.Name()).To(Equal("mdu"))
	})
})
