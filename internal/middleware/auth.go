package middleware

import (
	"strings"

	"license-auth-server/internal/model"
	"license-auth-server/internal/util"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Auth 管理端JWT认证
func Auth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "未提供认证令牌",
			})
		}

		// 获取 Bearer token
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "无效的认证格式",
			})
		}

		userID, err := util.ValidateToken(tokenParts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "无效的认证令牌",
			})
		}

		c.Locals("userID", userID)
		return c.Next()
	}
}

// AdminOnly 检查当前账户是否为有效的管理员
func AdminOnly(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userID").(uint)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "未认证",
			})
		}

		var user model.AdminUser
		result := db.First(&user, userID)
		if result.Error != nil || user.Role != "admin" || user.Status != "active" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "需要管理员权限",
			})
		}

		return c.Next()
	}
}
