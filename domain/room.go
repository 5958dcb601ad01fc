package domain

type RoomID string

type Room struct {
	ID   RoomID
	Name string
}
