package tee_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/tee"
)

// giveUpper is implemented by both side-stream views so a test consumer can
// abandon its pipe without importing tee's unexported types.
type giveUpper interface{ GiveUp() }

var _ = Describe("TeeStream", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("delivers every chunk to two side consumers, each matching the primary", func() {
		upstream, err := dsio.RStreamFrom([]byte("hello world"))
		Expect(err).NotTo(HaveOccurred())

		tm := tee.NewTeeStream(upstream, 4)

		var mu sync.Mutex
		var sideA, sideB []byte

		Expect(tm.StartTask(ctx, func(ctx context.Context, recv dsio.RStream) error {
			b, err := recv.Collect(ctx)
			if err != nil {
				return err
			}
			mu.Lock()
			sideA = b
			mu.Unlock()
			return nil
		})).To(Succeed())

		Expect(tm.StartTask(ctx, func(ctx context.Context, recv dsio.RStream) error {
			b, err := recv.Collect(ctx)
			if err != nil {
				return err
			}
			mu.Lock()
			sideB = b
			mu.Unlock()
			return nil
		})).To(Succeed())

		primary, err := tm.Collect(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(primary)).To(Equal("hello world"))

		Eventually(func() []byte {
			mu.Lock()
			defer mu.Unlock()
			return sideA
		}, time.Second).Should(Equal(primary))

		Eventually(func() []byte {
			mu.Lock()
			defer mu.Unlock()
			return sideB
		}, time.Second).Should(Equal(primary))
	})

	It("attaches a side consumer synchronously: it sees every chunk from the attach point on", func() {
		upstream, err := dsio.RStreamFrom([][]byte{[]byte("a"), []byte("b"), []byte("c")})
		Expect(err).NotTo(HaveOccurred())
		tm := tee.NewTeeStream(upstream, 4)

		first, err := tm.ReceiveSome(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(first)).To(Equal("a"))

		var got []byte
		done := make(chan struct{})
		Expect(tm.StartTask(ctx, func(ctx context.Context, recv dsio.RStream) error {
			defer close(done)
			b, err := recv.Collect(ctx)
			got = b
			return err
		})).To(Succeed())

		rest, err := tm.Collect(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(rest)).To(Equal("bc"))

		<-done
		Expect(string(got)).To(Equal("bc"))
	})

	It("forces the tee closed once a side consumer gives up", func() {
		upstream, err := dsio.RStreamFrom([][]byte{[]byte("a"), []byte("b"), []byte("c")})
		Expect(err).NotTo(HaveOccurred())
		tm := tee.NewTeeStream(upstream, 0) // unbuffered: send blocks until side reads

		attached := make(chan struct{})
		Expect(tm.StartTask(ctx, func(ctx context.Context, recv dsio.RStream) error {
			gu := recv.(giveUpper)
			gu.GiveUp()
			close(attached)
			return nil
		})).To(Succeed())

		<-attached
		// give the side goroutine time to actually close its pipe.
		Eventually(func() error {
			_, err := tm.ReceiveSome(ctx, 0)
			return err
		}, time.Second).Should(MatchError(cos.ErrBrokenResource))

		_, err = tm.ReceiveSome(ctx, 0)
		Expect(errors.Is(err, cos.ErrClosedResource)).To(BeTrue())
	})

	It("StartTaskSoon refuses to attach to a closed tee", func() {
		upstream, err := dsio.RStreamFrom([]byte("x"))
		Expect(err).NotTo(HaveOccurred())
		tm := tee.NewTeeStream(upstream, 1)

		// Close the tee first: the state is no longer open, so attaching
		// fails with closed-resource.
		Expect(tm.Close()).To(Succeed())
		err = tm.StartTaskSoon(ctx, func(context.Context, dsio.RStream) error { return nil })
		Expect(err).To(MatchError(cos.ErrClosedResource))
	})

	It("Close is idempotent and tears down outstanding side consumers", func() {
		upstream, err := dsio.RStreamFrom(bytes.Repeat([]byte("z"), 8))
		Expect(err).NotTo(HaveOccurred())
		tm := tee.NewTeeStream(upstream, 1)

		Expect(tm.StartTask(ctx, func(ctx context.Context, recv dsio.RStream) error {
			_, err := recv.Collect(ctx)
			return err
		})).To(Succeed())

		Expect(tm.Close()).To(Succeed())
		Expect(tm.Close()).To(Succeed())
	})
})

var _ = Describe("TeeChannel", func() {
	It("fans out items to an attached side consumer", func() {
		upstream, err := dsio.RChannelFrom[int]([]int{1, 2, 3})
		Expect(err).NotTo(HaveOccurred())
		tc := tee.NewTeeChannel[int](upstream, 4)

		var mu sync.Mutex
		var side []int
		Expect(tc.StartTask(context.Background(), func(ctx context.Context, recv dsio.RChannel[int]) error {
			for {
				v, err := recv.Receive(ctx)
				if errors.Is(err, cos.ErrEndOfChannel) {
					return nil
				}
				if err != nil {
					return err
				}
				mu.Lock()
				side = append(side, v)
				mu.Unlock()
			}
		})).To(Succeed())

		var primary []int
		for {
			v, err := tc.Receive(context.Background())
			if errors.Is(err, cos.ErrEndOfChannel) {
				break
			}
			Expect(err).NotTo(HaveOccurred())
			primary = append(primary, v)
		}
		Expect(primary).To(Equal([]int{1, 2, 3}))

		Eventually(func() []int {
			mu.Lock()
			defer mu.Unlock()
			return side
		}, time.Second).Should(Equal(primary))

		Expect(tc.Close()).To(Succeed())
	})
})
