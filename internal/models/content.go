package models

// BlockType is the kind of content a block carries.
type BlockType string

const (
	BlockText        BlockType = "text"
	BlockVideo       BlockType = "video"
	BlockImage       BlockType = "image"
	BlockQuestion    BlockType = "question"
	BlockInteractive BlockType = "interactive"
	BlockQuiz        BlockType = "quiz"
)

// QuestionType selects the grading rule for a question block.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionOpenEnded      QuestionType = "open_ended"
	QuestionMatching       QuestionType = "matching"
	QuestionOrdering       QuestionType = "ordering"
)

// QuestionBlockTypes are the block types that may carry a gradable question.
var QuestionBlockTypes = map[BlockType]bool{
	BlockQuestion:    true,
	BlockInteractive: true,
	BlockQuiz:        true,
}

var ValidQuestionTypes = map[QuestionType]bool{
	QuestionMultipleChoice: true,
	QuestionTrueFalse:      true,
	QuestionOpenEnded:      true,
	QuestionMatching:       true,
	QuestionOrdering:       true,
}

type Guide struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type Module struct {
	ID      int64  `json:"id"`
	GuideID int64  `json:"guide_id"`
	Title   string `json:"title"`
	Order   int    `json:"order"`
	Points  int64  `json:"points"`
	// BlockIDs holds the module's blocks in display order.
	BlockIDs []int64 `json:"block_ids"`
}

// TotalBlocks is the number of blocks a user must attempt to complete the module.
func (m *Module) TotalBlocks() int {
	return len(m.BlockIDs)
}

type Block struct {
	ID              int64            `json:"id"`
	ModuleID        int64            `json:"module_id"`
	Type            BlockType        `json:"type"`
	QuestionType    *QuestionType    `json:"question_type,omitempty"`
	Order           int              `json:"order"`
	Statement       string           `json:"statement"`
	Points          int64            `json:"points"`
	Answers         []BlockAnswer    `json:"answers"`
	RelationalPairs []RelationalPair `json:"relational_pairs"`
}

// IsQuestion reports whether the block is a question-bearing type with a
// question type the grader understands.
func (b *Block) IsQuestion() bool {
	return QuestionBlockTypes[b.Type] && b.QuestionType != nil && ValidQuestionTypes[*b.QuestionType]
}

// HasAnswer reports whether id is one of the block's candidate answers.
func (b *Block) HasAnswer(id int64) bool {
	for _, a := range b.Answers {
		if a.ID == id {
			return true
		}
	}
	return false
}

// HasRelationalPair reports whether id is one of the block's relational pairs.
func (b *Block) HasRelationalPair(id int64) bool {
	for _, p := range b.RelationalPairs {
		if p.ID == id {
			return true
		}
	}
	return false
}

type BlockAnswer struct {
	ID        int64  `json:"id"`
	BlockID   int64  `json:"block_id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"-"`
	Order     int    `json:"order"`
}

type RelationalPair struct {
	ID          int64  `json:"id"`
	BlockID     int64  `json:"block_id"`
	LeftItem    string `json:"left_item"`
	RightItem   string `json:"right_item"`
	CorrectPair bool   `json:"-"`
}
