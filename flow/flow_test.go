package flow

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/prism/arch"
)

var _ = Describe("Flow", func() {
	var (
		mockCtrl *gomock.Controller
		ctx      *arch.Context
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		ctx = arch.NewContext("test")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	newPass := func(key string, deps, conflicts, after []string) *MockPass {
		p := NewMockPass(mockCtrl)
		p.EXPECT().Key().Return(key).AnyTimes()
		p.EXPECT().Dependences().Return(deps).AnyTimes()
		p.EXPECT().Conflicts().Return(conflicts).AnyTimes()
		p.EXPECT().PassesAfterSelf().Return(after).AnyTimes()

		return p
	}

	It("should run passes in dependency order", func() {
		annot := newPass("annotation.switch_path",
			nil, nil, []string{"prog.insertion"})
		insert := newPass("prog.insertion.scanchain",
			[]string{"annotation.switch_path"}, nil, nil)

		gomock.InOrder(
			annot.EXPECT().Run(ctx).Return(nil),
			insert.EXPECT().Run(ctx).Return(nil),
		)

		err := NewFlow(insert, annot).Run(ctx)

		Expect(err).ToNot(HaveOccurred())
		Expect(ctx.IsApplied("annotation.switch_path")).To(BeTrue())
		Expect(ctx.IsApplied("prog.insertion.scanchain")).To(BeTrue())
	})

	It("should reject a pass added twice", func() {
		p := newPass("annotation.switch_path", nil, nil, nil)

		err := NewFlow(p, p).Run(ctx)

		Expect(err).To(MatchError(ContainSubstring("added twice")))
	})

	It("should reject a pass already applied to the context", func() {
		ctx.MarkApplied("annotation.switch_path")
		p := newPass("annotation.switch_path", nil, nil, nil)

		err := NewFlow(p).Run(ctx)

		Expect(err).To(MatchError(ContainSubstring("already applied")))
	})

	It("should reject passes with overlapping keys", func() {
		a := newPass("prog", nil, nil, nil)
		b := newPass("prog.insertion.frame", nil, nil, nil)

		err := NewFlow(a, b).Run(ctx)

		Expect(err).To(MatchError(ContainSubstring("conflict")))
	})

	It("should reject declared conflicts", func() {
		a := newPass("prog.insertion.frame", nil,
			[]string{"prog.insertion.scanchain"}, nil)
		b := newPass("prog.insertion.scanchain", nil, nil, nil)

		err := NewFlow(a, b).Run(ctx)

		Expect(err).To(MatchError(ContainSubstring("conflict")))
	})

	It("should reject a missing dependence", func() {
		p := newPass("prog.insertion.scanchain",
			[]string{"annotation.switch_path"}, nil, nil)

		err := NewFlow(p).Run(ctx)

		Expect(err).To(MatchError(ContainSubstring("missing dependent pass")))
	})

	It("should satisfy a dependence with an already applied pass", func() {
		ctx.MarkApplied("annotation.switch_path")
		p := newPass("prog.insertion.scanchain",
			[]string{"annotation.switch_path"}, nil, nil)
		p.EXPECT().Run(ctx).Return(nil)

		err := NewFlow(p).Run(ctx)

		Expect(err).ToNot(HaveOccurred())
	})

	It("should fail on a cyclic ordering", func() {
		a := newPass("a", nil, nil, []string{"b"})
		b := newPass("b", nil, nil, []string{"a"})

		err := NewFlow(a, b).Run(ctx)

		Expect(err).To(MatchError(ContainSubstring("feasible order")))
	})

	It("should wrap pass errors with the pass key", func() {
		p := newPass("annotation.switch_path", nil, nil, nil)
		p.EXPECT().Run(ctx).Return(errors.New("boom"))

		err := NewFlow(p).Run(ctx)

		Expect(err).To(MatchError(ContainSubstring("annotation.switch_path")))
		Expect(err).To(MatchError(ContainSubstring("boom")))
	})

	It("should match dependences by dot-path prefix", func() {
		annot := newPass("annotation.switch_path", nil, nil, nil)
		insert := newPass("prog.insertion.pktchain",
			[]string{"annotation"}, nil, nil)

		gomock.InOrder(
			annot.EXPECT().Run(ctx).Return(nil),
			insert.EXPECT().Run(ctx).Return(nil),
		)

		err := NewFlow(insert, annot).Run(ctx)

		Expect(err).ToNot(HaveOccurred())
	})
})
