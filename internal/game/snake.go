package game

import pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"

// Cells expands the run-length body of s into absolute cells, head first.
func Cells(b Board, s *pb.Snake) []pb.Coord {
	if len(s.Points) == 0 {
		return nil
	}
	cells := make([]pb.Coord, 0, Length(s))
	cur := s.Points[0]
	cells = append(cells, cur)
	for _, run := range s.Points[1:] {
		dir, n := runDirection(run)
		for i := int32(0); i < n; i++ {
			cur = b.Step(cur, dir, 1)
			cells = append(cells, cur)
		}
	}
	return cells
}

// Length is the number of cells the snake covers.
func Length(s *pb.Snake) int32 {
	if len(s.Points) == 0 {
		return 0
	}
	n := int32(1)
	for _, run := range s.Points[1:] {
		_, l := runDirection(run)
		n += l
	}
	return n
}

// Move pushes the head one cell in dir. The body grows by one cell until
// Retract is called.
func Move(b Board, s *pb.Snake, dir pb.Direction) {
	head := s.Points[0]
	back := Delta(Opposite(dir))

	if len(s.Points) > 1 && sameHeading(s.Points[1], back) {
		s.Points[1].X += back.X
		s.Points[1].Y += back.Y
	} else {
		s.Points = append(s.Points, pb.Coord{})
		copy(s.Points[2:], s.Points[1:])
		s.Points[1] = back
	}
	s.Points[0] = b.Step(head, dir, 1)
	s.HeadDirection = dir
}

// Retract removes the tail cell, dropping the last run once it is empty.
func Retract(s *pb.Snake) {
	if len(s.Points) < 2 {
		return
	}
	last := &s.Points[len(s.Points)-1]
	switch {
	case last.X > 0:
		last.X--
	case last.X < 0:
		last.X++
	case last.Y > 0:
		last.Y--
	case last.Y < 0:
		last.Y++
	}
	if last.X == 0 && last.Y == 0 {
		s.Points = s.Points[:len(s.Points)-1]
	}
}

func sameHeading(run, unit pb.Coord) bool {
	switch {
	case unit.X != 0:
		return run.Y == 0 && run.X*unit.X > 0
	case unit.Y != 0:
		return run.X == 0 && run.Y*unit.Y > 0
	}
	return false
}
