package model

import "encoding/json"

// Folder is a Canvas file folder. FoldersURL and FilesURL are API links to
// the folder's children.
type Folder struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	FoldersURL     string `json:"folders_url"`
	FilesURL       string `json:"files_url"`
	ForSubmissions bool   `json:"for_submissions"`
	CanUpload      bool   `json:"can_upload"`

	// ParentFolderID is nil for the course root folder.
	ParentFolderID *int64 `json:"parent_folder_id"`
}

// IsRoot reports whether the folder is the root of a course file tree.
func (f Folder) IsRoot() bool {
	return f.ParentFolderID == nil
}

// Page is a wiki page summary as listed by /courses/:id/pages.
type Page struct {
	PageID    int64  `json:"page_id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updated_at"`
	Locked    bool   `json:"locked_for_user"`
}

// PageBody is a single wiki page with its HTML body.
type PageBody struct {
	PageID    int64  `json:"page_id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	UpdatedAt string `json:"updated_at"`
	Locked    bool   `json:"locked_for_user"`
}

// Assignment is a course assignment.
type Assignment struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	CreatedAt       *string  `json:"created_at"`
	DueAt           *string  `json:"due_at"`
	SubmissionTypes []string `json:"submission_types"`
}

// Submission is the current user's submission for an assignment.
type Submission struct {
	ID          *int64       `json:"id"`
	Body        *string      `json:"body"`
	Attachments []RemoteFile `json:"attachments"`
}

// Discussion is a discussion topic or announcement.
type Discussion struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	PostedAt    *string           `json:"posted_at"`
	Author      *DiscussionAuthor `json:"author"`
	Attachments []RemoteFile      `json:"attachments"`
}

// DiscussionAuthor identifies who posted a discussion.
type DiscussionAuthor struct {
	ID             *int64  `json:"id,omitempty"`
	DisplayName    *string `json:"display_name,omitempty"`
	AvatarImageURL *string `json:"avatar_image_url,omitempty"`
}

// DiscussionView is the full threaded view of a discussion topic.
type DiscussionView struct {
	UnreadEntries []int64       `json:"unread_entries"`
	Participants  []Participant `json:"participants"`
	View          []Comment     `json:"view"`
}

// Participant maps a user ID in a DiscussionView to a display name.
type Participant struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// ResolveNames fills in Comment.UserName from the participant list.
func (v *DiscussionView) ResolveNames() {
	names := make(map[int64]string, len(v.Participants))
	for _, p := range v.Participants {
		names[p.ID] = p.DisplayName
	}
	for i := range v.View {
		if v.View[i].UserID == nil {
			continue
		}
		if name, ok := names[*v.View[i].UserID]; ok {
			v.View[i].UserName = &name
		}
	}
}

// Comment is one entry of a DiscussionView. Older Canvas versions return a
// single attachment, newer ones a list.
type Comment struct {
	ID          int64        `json:"id"`
	UserID      *int64       `json:"user_id"`
	UserName    *string      `json:"user_name"`
	Message     *string      `json:"message"`
	CreatedAt   *string      `json:"created_at"`
	Attachment  *RemoteFile  `json:"attachment"`
	Attachments []RemoteFile `json:"attachments"`
}

// Files returns every attachment of the comment.
func (c Comment) Files() []RemoteFile {
	files := make([]RemoteFile, 0, len(c.Attachments)+1)
	if c.Attachment != nil {
		files = append(files, *c.Attachment)
	}
	return append(files, c.Attachments...)
}

// Module is a course module.
type Module struct {
	ID                        int64   `json:"id"`
	Name                      string  `json:"name"`
	Position                  int     `json:"position"`
	UnlockAt                  *string `json:"unlock_at"`
	RequireSequentialProgress *bool   `json:"require_sequential_progress"`
	PublishFinalGrade         *bool   `json:"publish_final_grade"`
	PrerequisiteModuleIDs     []int64 `json:"prerequisite_module_ids"`
	State                     *string `json:"state"`
	CompletedAt               *string `json:"completed_at"`
	ItemsCount                int     `json:"items_count"`
	ItemsURL                  string  `json:"items_url"`
}

// Module item types. Canvas also returns "Quiz" and "ExternalTool",
// which carry nothing to mirror.
const (
	ModuleItemFile        = "File"
	ModuleItemPage        = "Page"
	ModuleItemExternalURL = "ExternalUrl"
	ModuleItemSubHeader   = "SubHeader"
	ModuleItemAssignment  = "Assignment"
	ModuleItemDiscussion  = "Discussion"
)

// ModuleItem is one entry of a module.
type ModuleItem struct {
	ID                    int64           `json:"id"`
	Title                 string          `json:"title"`
	Type                  string          `json:"type"`
	ContentID             *int64          `json:"content_id"`
	HTMLURL               *string         `json:"html_url"`
	URL                   *string         `json:"url"`
	PageURL               *string         `json:"page_url"`
	ExternalURL           *string         `json:"external_url"`
	Position              int             `json:"position"`
	Indent                int             `json:"indent"`
	CompletionRequirement json.RawMessage `json:"completion_requirement,omitempty"`
}

// Syllabus is a course fetched with include[]=syllabus_body.
type Syllabus struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	CourseCode   string  `json:"course_code"`
	SyllabusBody *string `json:"syllabus_body"`
}
