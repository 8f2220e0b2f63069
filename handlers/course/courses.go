package course

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/skillvault/api/model"
	"github.com/skillvault/api/services/storage"
	"github.com/skillvault/api/utils/cache"
	"github.com/skillvault/api/utils/middleware"
	"github.com/skillvault/api/utils/response"
	"github.com/skillvault/api/utils/validation"
	"gorm.io/gorm"
)

// catalogCacheTTL is how long catalog pages live in Redis before expiring on
// their own; mutations invalidate eagerly.
const catalogCacheTTL = 5 * time.Minute

// CourseHandler handles catalog browsing and admin course CRUD
type CourseHandler struct {
	db        *gorm.DB
	validator *validation.Validator
	spaces    *storage.SpacesClient
	cache     *cache.RedisCache
}

// NewCourseHandler creates a new course handler. spaces and redisCache may be
// nil; image upload and catalog caching degrade gracefully without them.
func NewCourseHandler(db *gorm.DB, spaces *storage.SpacesClient, redisCache *cache.RedisCache) *CourseHandler {
	return &CourseHandler{
		db:        db,
		validator: validation.NewValidator(),
		spaces:    spaces,
		cache:     redisCache,
	}
}

// courseForm represents the multipart form fields for create/update
type courseForm struct {
	Title       string  `validate:"required,min=3,max=255"`
	Description string  `validate:"required,min=3"`
	Price       float64 `validate:"required,gt=0"`
}

type catalogPage struct {
	Courses    []model.Course          `json:"courses"`
	Pagination response.PaginationMeta `json:"pagination"`
}

// ListCourses handles GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	search := c.Query("search", "")

	cacheKey := fmt.Sprintf("courses:list:%d:%d:%s", page, limit, search)
	if h.cache != nil {
		var cached catalogPage
		if err := h.cache.GetJSON(c.Context(), cacheKey, &cached); err == nil {
			return response.Paginated(c, cached.Courses, cached.Pagination)
		}
	}

	query := h.db.Model(&model.Course{})
	if search != "" {
		query = query.Where("title ILIKE ? OR description ILIKE ?",
			"%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count courses")
	}

	offset := (page - 1) * limit
	pagination := response.CalculatePagination(page, limit, total)

	var courses []model.Course
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&courses).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch courses")
	}

	if h.cache != nil {
		h.cache.SetJSON(c.Context(), cacheKey, catalogPage{Courses: courses, Pagination: pagination}, catalogCacheTTL)
	}

	return response.Paginated(c, courses, pagination)
}

// GetCourse handles GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	var course model.Course
	if err := h.db.Preload("Creator").First(&course, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	return response.Success(c, course)
}

func (h *CourseHandler) parseForm(c *fiber.Ctx) (*courseForm, error) {
	price, err := strconv.ParseFloat(c.FormValue("price"), 64)
	if err != nil {
		return nil, fmt.Errorf("price must be a number")
	}

	form := &courseForm{
		Title:       validation.SanitizeString(c.FormValue("title")),
		Description: validation.SanitizeString(c.FormValue("description")),
		Price:       price,
	}
	if err := h.validator.ValidateStruct(form); err != nil {
		return nil, err
	}
	return form, nil
}

// uploadImage reads the optional "image" form file and stores it in the
// object store, returning (key, url). Both empty when no file was sent.
func (h *CourseHandler) uploadImage(c *fiber.Ctx) (string, string, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil || fileHeader == nil {
		return "", "", nil
	}
	if h.spaces == nil {
		return "", "", fmt.Errorf("image storage is not configured")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", "", fmt.Errorf("open uploaded image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", "", fmt.Errorf("read uploaded image: %w", err)
	}

	contentType := fileHeader.Header.Get("Content-Type")
	return h.spaces.UploadCourseImage(c.Context(), fileHeader.Filename, data, contentType)
}

func (h *CourseHandler) invalidateCatalog(c *fiber.Ctx) {
	if h.cache != nil {
		h.cache.DeleteByPattern(c.Context(), "courses:list:*")
	}
}

// CreateCourse handles POST /api/v1/courses (admin only)
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	admin, ok := middleware.GetAdmin(c)
	if !ok || admin == nil {
		return response.Unauthorized(c, "Admin not authenticated")
	}

	form, err := h.parseForm(c)
	if err != nil {
		return response.ValidationError(c, err)
	}

	imageKey, imageURL, err := h.uploadImage(c)
	if err != nil {
		return response.InternalServerError(c, "Failed to store course image")
	}

	course := model.Course{
		Title:       form.Title,
		Description: form.Description,
		Price:       form.Price,
		CreatorID:   admin.ID,
		ImageKey:    imageKey,
		ImageURL:    imageURL,
	}
	if err := h.db.Create(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to create course")
	}

	h.invalidateCatalog(c)

	return response.Created(c, "Course created successfully", course)
}

// UpdateCourse handles PUT /api/v1/courses/:id (creator only)
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	admin, ok := middleware.GetAdmin(c)
	if !ok || admin == nil {
		return response.Unauthorized(c, "Admin not authenticated")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	var course model.Course
	if err := h.db.First(&course, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	// CreatorID is immutable and gates mutation.
	if course.CreatorID != admin.ID {
		return response.Forbidden(c, "This course was created by another admin. You cannot update or delete it.")
	}

	if title := validation.SanitizeString(c.FormValue("title")); title != "" {
		course.Title = title
	}
	if description := validation.SanitizeString(c.FormValue("description")); description != "" {
		course.Description = description
	}
	if rawPrice := c.FormValue("price"); rawPrice != "" {
		price, err := strconv.ParseFloat(rawPrice, 64)
		if err != nil || price <= 0 {
			return response.BadRequest(c, "Price must be a positive number")
		}
		course.Price = price
	}

	imageKey, imageURL, err := h.uploadImage(c)
	if err != nil {
		return response.InternalServerError(c, "Failed to store course image")
	}
	if imageKey != "" {
		if course.ImageKey != "" && h.spaces != nil {
			h.spaces.DeleteObject(c.Context(), course.ImageKey)
		}
		course.ImageKey = imageKey
		course.ImageURL = imageURL
	}

	if err := h.db.Save(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to update course")
	}

	h.invalidateCatalog(c)

	return response.SuccessWithMessage(c, "Course updated successfully", course)
}

// DeleteCourse handles DELETE /api/v1/courses/:id (creator only)
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	admin, ok := middleware.GetAdmin(c)
	if !ok || admin == nil {
		return response.Unauthorized(c, "Admin not authenticated")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	var course model.Course
	if err := h.db.First(&course, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	if course.CreatorID != admin.ID {
		return response.Forbidden(c, "This course was created by another admin. You cannot update or delete it.")
	}

	// Purchases referencing this course keep their rows; reads filter out the
	// dangling course reference.
	if err := h.db.Delete(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete course")
	}

	if course.ImageKey != "" && h.spaces != nil {
		h.spaces.DeleteObject(c.Context(), course.ImageKey)
	}

	h.invalidateCatalog(c)

	return response.SuccessWithMessage(c, "Course deleted successfully", nil)
}
