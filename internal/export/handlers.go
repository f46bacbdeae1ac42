package export

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/accomplish/internal/apierr"
)

type docxRequest struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

// DocxHandler streams content back as a .docx attachment. Nothing is stored.
func DocxHandler(c *gin.Context) {
	var req docxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, apierr.BadRequest("Invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		apierr.Respond(c, apierr.BadRequest("Missing content"))
		return
	}

	doc, err := BuildDocx(req.Content)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, SanitizeFilename(req.Filename)))
	c.Data(http.StatusOK, ContentType, doc)
}
