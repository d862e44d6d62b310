package silo

import "testing"

const (
	nPosVel = 1000
	nPos    = 1000
)

func BenchmarkQueryIterate(b *testing.B) {
	b.StopTimer()

	w := NewWorld()
	pos := Register[Position](w)
	vel := Register[Velocity](w)

	for i := 0; i < nPosVel; i++ {
		e, _ := w.AddEntity()
		w.AddComponent(e, pos.ID())
		w.AddComponent(e, vel.ID())
	}
	for i := 0; i < nPos; i++ {
		e, _ := w.AddEntity()
		w.AddComponent(e, pos.ID())
	}

	q, err := w.Query().All(pos.ID(), vel.ID()).Compile()
	if err != nil {
		b.Fatal(err)
	}

	b.StartTimer()

	for i := 0; i < b.N; i++ {
		q.Run(func(it *Iterator) {
			posView := pos.ViewSilentMut(it)
			velView := vel.View(it)
			for row := range it.Rows() {
				p := posView.Get(row)
				v := velView.Get(row)
				p.X += v.X
				p.Y += v.Y
				posView.Set(row, p)
			}
		})
	}
}

// BenchmarkQueryPairAdmission runs a complex, pair-carrying query over
// a world where one entity in ten carries the target relationship.
// admitsPairs's linear scan runs on the first Run only; later runs
// reuse the cached match list, so the timed loop measures dispatch
// over the matched archetype.
func BenchmarkQueryPairAdmission(b *testing.B) {
	b.StopTimer()

	w := NewWorld()
	pos := Register[Position](w)
	ownedBy := NewPair(1, 7)

	for i := 0; i < nPos; i++ {
		e, _ := w.AddEntity()
		w.AddComponent(e, pos.ID())
		if i%10 == 0 {
			w.AddPair(e, ownedBy)
		}
	}

	q, err := w.Query().All(pos.ID()).AllPairs(ownedBy).Compile()
	if err != nil {
		b.Fatal(err)
	}

	b.StartTimer()

	for i := 0; i < b.N; i++ {
		q.Run(func(it *Iterator) {})
	}
}
