package dsmeta_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aistore-oss/dstore/dsmeta"
)

var _ = Describe("DatastoreMeta.Add", func() {
	It("treats IGNORE as an additive identity", func() {
		m := dsmeta.DatastoreMeta{Size: dsmeta.Some(uint64(10)), SizeAccuracy: dsmeta.AccuracyExact}
		Expect(m.Add(dsmeta.IGNORE)).To(Equal(m))
		Expect(dsmeta.IGNORE.Add(m)).To(Equal(m))
	})

	It("degrades accuracy to the weaker operand", func() {
		a := dsmeta.DatastoreMeta{Size: dsmeta.Some(uint64(5)), SizeAccuracy: dsmeta.AccuracyExact}
		b := dsmeta.DatastoreMeta{Size: dsmeta.Some(uint64(7)), SizeAccuracy: dsmeta.AccuracyApproximate}
		sum := a.Add(b)
		v, ok := sum.Size.Get()
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(uint64(12)))
		Expect(sum.SizeAccuracy).To(Equal(dsmeta.AccuracyApproximate))
	})

	It("treats unknown+known as a lower bound of the sum", func() {
		unknown := dsmeta.DatastoreMeta{SizeAccuracy: dsmeta.AccuracyUnknown}
		known := dsmeta.DatastoreMeta{Size: dsmeta.Some(uint64(42)), SizeAccuracy: dsmeta.AccuracyExact}
		sum := unknown.Add(known)
		v, ok := sum.Size.Get()
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(uint64(42)))
		Expect(sum.SizeAccuracy).To(Equal(dsmeta.AccuracyLowerBound))
	})

	It("sums object counts independently of size", func() {
		a := dsmeta.DatastoreMeta{ObjectCount: dsmeta.Some(uint64(3))}
		b := dsmeta.DatastoreMeta{ObjectCount: dsmeta.Some(uint64(4))}
		v, ok := a.Add(b).ObjectCount.Get()
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(uint64(7)))
	})
})
