package runtime

import "chat-hub/domain"

// Frame is the closed set of inbound transport events. Keeping the union
// closed forces every state mutation through Coordinator.Handle, which is
// the one place the mutation contract is enforced and tested.
type Frame interface {
	isFrame()
}

type SendMessage struct {
	Room    domain.RoomID
	Content string
}

type Join struct {
	Room domain.RoomID
}

type Leave struct {
	Room domain.RoomID
}

type Typing struct {
	Room     domain.RoomID
	IsTyping bool
}

// History requests a page of a room's stored messages. A nil cursor starts
// at the newest message.
type History struct {
	Room   domain.RoomID
	Cursor *string
}

func (SendMessage) isFrame() {}
func (Join) isFrame()        {}
func (Leave) isFrame()       {}
func (Typing) isFrame()      {}
func (History) isFrame()     {}
