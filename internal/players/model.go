package players

type Type string

const (
	Student Type = "student"
	Parent  Type = "parent"
)

func ParseType(s string) Type {
	if Type(s) == Parent {
		return Parent
	}
	return Student
}

type Player struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Type  Type   `json:"type"`
	seq   int
}
