package controllers

import (
	"errors"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"anivote-backend/database"
	"anivote-backend/models"
)

// Register handles POST /api/members/register.
func Register(c *fiber.Ctx) error {
	var data struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}
	if data.Email == "" || len(data.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email and a password of at least 8 characters are required"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(data.Password), 14)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to hash password"})
	}

	var memberID int
	err = database.DB.QueryRow(`
        INSERT INTO members (email, password_hash)
        VALUES ($1, $2)
        RETURNING id
    `, data.Email, string(hash)).Scan(&memberID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email is already registered"})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid registration data"})
	}

	return c.JSON(fiber.Map{"id": memberID, "message": "Member registered successfully"})
}

// Login handles POST /api/members/login and issues the bearer token the
// voting endpoints read the member id from.
func Login(c *fiber.Ctx) error {
	var data struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	var member models.Member
	err := database.DB.QueryRow(`
        SELECT id, email, password_hash, admin FROM members WHERE email = $1
    `, data.Email).Scan(&member.ID, &member.Email, &member.PasswordHash, &member.Admin)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	if bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(data.Password)) != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Incorrect password"})
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"member_id": member.ID,
		"admin":     member.Admin,
		"exp":       time.Now().Add(time.Hour * 72).Unix(),
	})

	secret := os.Getenv("JWT_SECRET")
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create token"})
	}

	return c.JSON(fiber.Map{"token": tokenString})
}

// GetMe handles GET /api/members/me.
func GetMe(c *fiber.Ctx) error {
	memberID, ok := c.Locals("member_id").(int)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not logged in"})
	}

	var member models.Member
	err := database.DB.QueryRow(`
		SELECT id, email, admin FROM members WHERE id = $1
	`, memberID).Scan(&member.ID, &member.Email, &member.Admin)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Member not found"})
	}

	return c.JSON(member)
}
