package domain

type User struct {
	ID          string
	DisplayName string
}
