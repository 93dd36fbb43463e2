package push

import "fmt"

// roomChannelFormat is the topic-style address connected client
// sessions subscribe to, one per room.
const roomChannelFormat = "room.%s"

// roomChannelPattern matches every room channel.
const roomChannelPattern = "room.*"

// RoomChannel returns the live push channel name for a room.
func RoomChannel(roomID string) string {
	return fmt.Sprintf(roomChannelFormat, roomID)
}
