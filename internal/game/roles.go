package game

import pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"

// NextPlayerID mints an id one above the highest known. Ids start at 1.
func NextPlayerID(state *pb.GameState) int32 {
	var highest int32
	for _, p := range state.Players {
		if p.Id > highest {
			highest = p.Id
		}
	}
	return highest + 1
}

// Demote turns the player into a VIEWER and removes its snake. It reports
// whether anything changed.
func Demote(state *pb.GameState, playerID int32) bool {
	changed := false
	if p, ok := state.Player(playerID); ok && p.Role != pb.NodeRole_VIEWER {
		p.Role = pb.NodeRole_VIEWER
		changed = true
	}
	for i := range state.Snakes {
		if state.Snakes[i].PlayerId == playerID {
			state.Snakes = append(state.Snakes[:i], state.Snakes[i+1:]...)
			changed = true
			break
		}
	}
	return changed
}

// PromoteDeputy makes the first NORMAL player DEPUTY when nobody holds that
// role.
func PromoteDeputy(state *pb.GameState) (int32, bool) {
	if _, ok := state.PlayerWithRole(pb.NodeRole_DEPUTY); ok {
		return 0, false
	}
	for i := range state.Players {
		if state.Players[i].Role == pb.NodeRole_NORMAL {
			state.Players[i].Role = pb.NodeRole_DEPUTY
			return state.Players[i].Id, true
		}
	}
	return 0, false
}

// ValidSteer reports whether playerID may turn its snake to dir this turn.
func ValidSteer(state *pb.GameState, playerID int32, dir pb.Direction) bool {
	if !dir.Valid() {
		return false
	}
	p, ok := state.Player(playerID)
	if !ok || p.Role == pb.NodeRole_VIEWER {
		return false
	}
	s, ok := state.Snake(playerID)
	if !ok {
		return false
	}
	return dir != Opposite(s.HeadDirection)
}
