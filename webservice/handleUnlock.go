package webservice

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// User need to enter correct PIN to unlock the API
func (wm *WebMaster) handleUnlock(c *gin.Context) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"result": "error", "message": "Invalid request"})
		return
	}

	sIP := c.ClientIP()
	now := wm.now()

	wm.mu.Lock()
	wm.sweepUnlockRecords(now)
	record := wm.UnlockAttemptRecords[sIP]
	if record.IsLocked {
		wm.UnlockAttemptRecords[sIP] = record
		wm.mu.Unlock()
		wm.logger.Warn("unlock refused, client locked out", "client", sIP, "until", record.LockUntil)
		c.JSON(http.StatusTooManyRequests, gin.H{"result": "failed", "message": "Too many attempts, please try again later", "leftTries": 0, "lockUntil": record.LockUntil})
		return
	}
	if wm.pin != "" && subtle.ConstantTimeCompare([]byte(req.PIN), []byte(wm.pin)) != 1 {
		record.Attempts++
		record.LastAttempt = now
		if record.Attempts >= maxUnlockAttempts {
			record.IsLocked = true
			record.LockUntil = now.Add(unlockLockout)
		}
		wm.UnlockAttemptRecords[sIP] = record
		wm.mu.Unlock()
		wm.logger.Warn("incorrect PIN", "client", sIP, "attempts", record.Attempts)
		c.JSON(http.StatusUnauthorized, gin.H{"result": "failed", "message": "Incorrect PIN", "leftTries": maxUnlockAttempts - record.Attempts})
		return
	}
	delete(wm.UnlockAttemptRecords, sIP)
	wm.mu.Unlock()

	token, err := wm.GenerateToken()
	if err != nil {
		wm.logger.Error("generating token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.SetCookie(authCookie, token, int(wm.tokenTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"result": "success", "message": "Unlocked", "token": token})
}

// sweepUnlockRecords forgets lapsed lockouts and failures older than the
// lockout window. wm.mu must be held.
func (wm *WebMaster) sweepUnlockRecords(now time.Time) {
	for ip, record := range wm.UnlockAttemptRecords {
		lapsed := now.Sub(record.LastAttempt) >= unlockLockout
		if record.IsLocked {
			lapsed = !now.Before(record.LockUntil)
		}
		if lapsed {
			delete(wm.UnlockAttemptRecords, ip)
		}
	}
}
