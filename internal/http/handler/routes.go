package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"classificados/internal/query"
	"classificados/internal/repository"
	"classificados/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// pinger may be nil when the configured backend cannot report connectivity.
func RegisterRoutes(app *fiber.App, svc service.ListingService, pinger repository.Pinger, version string) {
	app.Get("/", Root(version))
	app.Get("/health", HealthCheck(pinger))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api")
	api.Get("/listings", ListListings(svc))
	api.Post("/listings", CreateListing(svc))
	api.Get("/listings/:id", GetListing(svc))
	api.Put("/listings/:id/sold", MarkListingSold(svc))
	api.Get("/search", SearchListings(svc))

	app.Get("/uploads/:name", ServeUpload(svc))
}

// Root godoc
// @Summary API banner
// @Produce json
// @Success 200 {object} map[string]string
// @Router / [get]
func Root(version string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Classificados API is running",
			"version": version,
		})
	}
}

// HealthCheck godoc
// @Summary Storage connectivity check
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(pinger repository.Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe godoc
// @Summary Liveness probe
// @Success 200
// @Router /healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListListings godoc
// @Summary List active listings, newest first
// @Produce json
// @Success 200 {array} model.Listing
// @Router /api/listings [get]
func ListListings(svc service.ListingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.List(c.UserContext()))
	}
}

// GetListing godoc
// @Summary Get an active listing
// @Produce json
// @Param id path string true "Listing ID"
// @Success 200 {object} model.Listing
// @Failure 404 {object} errorPayload
// @Router /api/listings/{id} [get]
func GetListing(svc service.ListingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		l, err := svc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(l)
	}
}

// CreateListing godoc
// @Summary Create a listing
// @Description Accepts multipart/form-data with up to five files under "images", or a JSON draft without images.
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param price formData string true "Price"
// @Param seller formData string true "Seller"
// @Param category formData string false "Category"
// @Param contact formData string false "Contact"
// @Param condition formData string false "Condition"
// @Param images formData file false "Images"
// @Success 201 {object} model.Listing
// @Failure 400 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /api/listings [post]
func CreateListing(svc service.ListingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		draft, files, err := parseCreateRequest(c)
		if errors.Is(err, errImagesInJSON) {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		}
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		}

		uploads := make([]service.Upload, 0, len(files))
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
			}
			defer f.Close()
			uploads = append(uploads, service.Upload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(fiber.HeaderContentType),
				Size:        fh.Size,
				Content:     f,
			})
		}

		l, err := svc.Create(c.UserContext(), draft, uploads)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(l)
	}
}

// MarkListingSold godoc
// @Summary Mark a listing as sold
// @Produce json
// @Param id path string true "Listing ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} errorPayload
// @Router /api/listings/{id}/sold [put]
func MarkListingSold(svc service.ListingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := svc.MarkSold(c.UserContext(), c.Params("id")); err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "listing marked as sold"})
	}
}

// SearchListings godoc
// @Summary Search active listings
// @Produce json
// @Param q query string false "Text matched against title, description and seller"
// @Param category query string false "Exact category; todos or all matches every category"
// @Success 200 {array} model.Listing
// @Router /api/search [get]
func SearchListings(svc service.ListingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.Search(c.UserContext(), query.Criteria{
			Query:    c.Query("q"),
			Category: c.Query("category"),
		}))
	}
}

// ServeUpload godoc
// @Summary Download a stored image
// @Param name path string true "Object key"
// @Success 200
// @Failure 404 {object} errorPayload
// @Router /uploads/{name} [get]
func ServeUpload(svc service.ListingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc, info, err := svc.OpenAttachment(c.UserContext(), c.Params("name"))
		if err != nil {
			return writeServiceError(c, err)
		}
		if info.ContentType != "" {
			c.Set(fiber.HeaderContentType, info.ContentType)
		}
		c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
		size := -1
		if info.Size > 0 {
			size = int(info.Size)
		}
		// fasthttp closes rc once the body has been written.
		return c.SendStream(rc, size)
	}
}

// errImagesInJSON rejects image references in a JSON draft. Images only enter a
// listing through a multipart upload.
var errImagesInJSON = errors.New("images must be uploaded as multipart/form-data files")

// createListingRequest is the JSON form of a draft. Price may be sent as a number or a string.
type createListingRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       priceInput `json:"price"`
	Category    string     `json:"category"`
	Seller      string     `json:"seller"`
	Contact     string     `json:"contact"`
	Condition   string     `json:"condition"`
	Images      []string   `json:"images"`
}

type priceInput string

func (p *priceInput) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = priceInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = priceInput(n.String())
	return nil
}

func parseCreateRequest(c *fiber.Ctx) (service.Draft, []*multipart.FileHeader, error) {
	if c.Is("json") {
		var req createListingRequest
		if err := c.BodyParser(&req); err != nil {
			return service.Draft{}, nil, err
		}
		if len(req.Images) > 0 {
			return service.Draft{}, nil, errImagesInJSON
		}
		return service.Draft{
			Title:       req.Title,
			Description: req.Description,
			Price:       string(req.Price),
			Category:    req.Category,
			Seller:      req.Seller,
			Contact:     req.Contact,
			Condition:   req.Condition,
		}, nil, nil
	}

	draft := service.Draft{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Price:       c.FormValue("price"),
		Category:    c.FormValue("category"),
		Seller:      c.FormValue("seller"),
		Contact:     c.FormValue("contact"),
		Condition:   c.FormValue("condition"),
	}

	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return draft, nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return service.Draft{}, nil, err
	}
	return draft, form.File["images"], nil
}
