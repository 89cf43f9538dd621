package memory

import "testing"

func TestDemoQuizzesAreValid(t *testing.T) {
	for id, quiz := range DemoQuizzes() {
		if quiz.ID != id {
			t.Fatalf("quiz %s carries id %q", id, quiz.ID)
		}
		if quiz.Title == "" {
			t.Fatalf("quiz %s has no title", id)
		}
		if err := quiz.Validate(); err != nil {
			t.Fatalf("quiz %s: %v", id, err)
		}
	}
}
