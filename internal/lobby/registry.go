package lobby

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"arcadehub/internal/apperr"
	"arcadehub/internal/protocol"
)

const firstRoomID = 100

type room struct {
	id        string
	gameID    string
	host      string
	members   []string
	status    protocol.RoomStatus
	chat      []string
	match     *protocol.MatchInfo
	launching bool
}

func (r *room) has(identity string) bool {
	for _, m := range r.members {
		if m == identity {
			return true
		}
	}
	return false
}

func (r *room) info() protocol.RoomInfo {
	out := protocol.RoomInfo{
		ID:      r.id,
		GameID:  r.gameID,
		Host:    r.host,
		Members: append([]string(nil), r.members...),
		Status:  r.status,
		Chat:    append([]string(nil), r.chat...),
	}
	if r.match != nil {
		m := *r.match
		out.Match = &m
	}
	return out
}

type issuedMatch struct {
	roomID string
	gameID string
}

// Registry owns every room. All mutation happens under its lock; callers get
// copies.
type Registry struct {
	maxRooms    int
	chatBacklog int

	mu     sync.RWMutex
	rooms  map[string]*room
	nextID int
	issued map[string]issuedMatch // match id -> room
}

// NewRegistry returns an empty registry. maxRooms <= 0 means unlimited.
func NewRegistry(maxRooms, chatBacklog int) *Registry {
	if chatBacklog <= 0 {
		chatBacklog = 50
	}
	return &Registry{
		maxRooms:    maxRooms,
		chatBacklog: chatBacklog,
		rooms:       make(map[string]*room),
		nextID:      firstRoomID,
		issued:      make(map[string]issuedMatch),
	}
}

// Create opens a waiting room whose only member is host.
func (r *Registry) Create(gameID, host string) (protocol.RoomInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxRooms > 0 && len(r.rooms) >= r.maxRooms {
		return protocol.RoomInfo{}, apperr.ResourceExhausted(fmt.Sprintf("room limit %d reached", r.maxRooms))
	}
	id := strconv.Itoa(r.nextID)
	r.nextID++
	rm := &room{
		id:      id,
		gameID:  gameID,
		host:    host,
		members: []string{host},
		status:  protocol.RoomWaiting,
	}
	r.rooms[id] = rm
	return rm.info(), nil
}

// Join adds identity to the room. Joining twice is a no-op.
func (r *Registry) Join(roomID, identity string) (protocol.RoomInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return protocol.RoomInfo{}, roomNotFound(roomID)
	}
	if rm.has(identity) {
		return rm.info(), nil
	}
	if rm.status == protocol.RoomPlaying {
		return protocol.RoomInfo{}, apperr.Conflict("room " + roomID + " is already playing")
	}
	rm.members = append(rm.members, identity)
	return rm.info(), nil
}

// Departure describes the effect of a leave.
type Departure struct {
	Room      protocol.RoomInfo
	Destroyed bool
}

// Leave removes identity from the room. The room is destroyed when it
// empties; a departing host hands over to the earliest remaining member.
func (r *Registry) Leave(roomID, identity string) (Departure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return Departure{}, roomNotFound(roomID)
	}
	if !rm.has(identity) {
		return Departure{}, apperr.NotFound(identity + " is not in room " + roomID)
	}
	return r.removeLocked(rm, identity), nil
}

// LeaveAll removes identity from every room it belongs to.
func (r *Registry) LeaveAll(identity string) []Departure {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Departure
	for _, id := range r.sortedIDsLocked() {
		rm := r.rooms[id]
		if rm.has(identity) {
			out = append(out, r.removeLocked(rm, identity))
		}
	}
	return out
}

func (r *Registry) removeLocked(rm *room, identity string) Departure {
	kept := rm.members[:0]
	for _, m := range rm.members {
		if m != identity {
			kept = append(kept, m)
		}
	}
	rm.members = kept
	if len(rm.members) == 0 {
		delete(r.rooms, rm.id)
		return Departure{Room: rm.info(), Destroyed: true}
	}
	if rm.host == identity {
		rm.host = rm.members[0]
	}
	return Departure{Room: rm.info()}
}

// Get returns one room.
func (r *Registry) Get(roomID string) (protocol.RoomInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return protocol.RoomInfo{}, roomNotFound(roomID)
	}
	return rm.info(), nil
}

// List returns every room ordered by id, without chat backlogs.
func (r *Registry) List() []protocol.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.RoomInfo, 0, len(r.rooms))
	for _, id := range r.sortedIDsLocked() {
		info := r.rooms[id].info()
		info.Chat = nil
		out = append(out, info)
	}
	return out
}

// Len is the number of open rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Chat appends a line to the room backlog and returns it along with the
// members that should see it.
func (r *Registry) Chat(roomID, identity, message string) (string, []string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return "", nil, roomNotFound(roomID)
	}
	if !rm.has(identity) {
		return "", nil, apperr.PermissionDenied("only members may chat in room " + roomID)
	}
	line := fmt.Sprintf("[%s]: %s", identity, message)
	rm.chat = append(rm.chat, line)
	if over := len(rm.chat) - r.chatBacklog; over > 0 {
		rm.chat = append([]string(nil), rm.chat[over:]...)
	}
	return line, append([]string(nil), rm.members...), nil
}

// BeginStart reserves the room for a launch by its host.
func (r *Registry) BeginStart(roomID, requester string) (protocol.RoomInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return protocol.RoomInfo{}, roomNotFound(roomID)
	}
	if rm.host != requester {
		return protocol.RoomInfo{}, apperr.PermissionDenied("only the host can start the game")
	}
	if rm.status == protocol.RoomPlaying {
		return protocol.RoomInfo{}, apperr.Conflict("room " + roomID + " is already playing")
	}
	if rm.launching {
		return protocol.RoomInfo{}, apperr.Conflict("room " + roomID + " is already launching")
	}
	rm.launching = true
	return rm.info(), nil
}

// AbortStart releases a launch reservation, leaving the room waiting.
func (r *Registry) AbortStart(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.rooms[roomID]; ok {
		rm.launching = false
	}
}

// MarkPlaying completes a launch. The match id is remembered so that its
// end-of-match report can be validated even after the room is gone.
func (r *Registry) MarkPlaying(roomID string, m protocol.MatchInfo) (protocol.RoomInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued[m.MatchID] = issuedMatch{roomID: roomID, gameID: m.GameID}
	rm, ok := r.rooms[roomID]
	if !ok {
		return protocol.RoomInfo{}, roomNotFound(roomID)
	}
	rm.launching = false
	rm.status = protocol.RoomPlaying
	rm.match = &m
	return rm.info(), nil
}

// ConsumeReport accepts a report for an issued, not yet reported match. If
// the room still runs that match it goes back to waiting, and the room is
// returned with reopened set.
func (r *Registry) ConsumeReport(roomID, matchID string) (info protocol.RoomInfo, reopened bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	im, ok := r.issued[matchID]
	if !ok || im.roomID != roomID {
		return protocol.RoomInfo{}, false, apperr.NotFound(fmt.Sprintf("no pending match %s for room %s", matchID, roomID))
	}
	delete(r.issued, matchID)
	rm, ok := r.rooms[roomID]
	if !ok || rm.match == nil || rm.match.MatchID != matchID {
		return protocol.RoomInfo{}, false, nil
	}
	rm.status = protocol.RoomWaiting
	rm.match = nil
	return rm.info(), true, nil
}

func (r *Registry) sortedIDsLocked() []string {
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(ids[i])
		b, _ := strconv.Atoi(ids[j])
		return a < b
	})
	return ids
}

func roomNotFound(id string) error {
	return apperr.NotFound("room " + id + " not found")
}
