package enrollment_test

import (
	"context"
	"testing"

	enrollment "github.com/emotionlab/go-enrollment"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAccountHandlerNormalizesIdentity(t *testing.T) {
	repo, _ := setupRepo(t)
	machine := enrollment.NewLifecycleMachine(repo)
	rotator := enrollment.NewPasswordRotator(repo.Accounts(), 0)
	handler := enrollment.NewRegisterAccountHandler(machine, rotator, "IN")
	ctx := context.Background()

	var created *enrollment.Account
	err := handler.Execute(ctx, enrollment.RegisterAccountMessage{
		FullName:      " Asha Rao ",
		Username:      "1RV21CS042",
		Semester:      "5",
		PersonalEmail: " Asha.Rao@Mail.TEST ",
		GSuite:        "ASHA@college.test",
		MobileNumber:  "98765 43210",
		Password:      "password123",
		OnResponse: func(account *enrollment.Account) {
			created = account
		},
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	stored, err := repo.Accounts().FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", stored.FullName)
	assert.Equal(t, "asha.rao@mail.test", stored.PersonalEmail)
	assert.Equal(t, "asha@college.test", stored.GSuite)
	assert.Equal(t, "+919876543210", stored.MobileNumber)
	assert.Equal(t, enrollment.StatePending, stored.State())
	assert.NoError(t, enrollment.ComparePasswordAndHash("password123", stored.PasswordHash))

	// the same phone written another way is still a duplicate
	err = handler.Execute(ctx, enrollment.RegisterAccountMessage{
		FullName:      "Other",
		Username:      "1RV21CS043",
		Semester:      "5",
		PersonalEmail: "other@mail.test",
		GSuite:        "other@college.test",
		MobileNumber:  "+91 98765-43210",
		Password:      "password123",
	})
	require.Error(t, err)
	assert.True(t, enrollment.IsDuplicateIdentity(err))
}

func TestRegisterAccountHandlerRejects(t *testing.T) {
	repo, _ := setupRepo(t)
	machine := enrollment.NewLifecycleMachine(repo)
	handler := enrollment.NewRegisterAccountHandler(machine, enrollment.NewPasswordRotator(repo.Accounts(), 0), "IN")
	ctx := context.Background()

	msg := enrollment.RegisterAccountMessage{
		FullName:      "Asha",
		Username:      "1RV21CS042",
		PersonalEmail: "asha@mail.test",
		GSuite:        "asha@college.test",
		MobileNumber:  "9876543210",
		Password:      "short",
	}
	err := handler.Execute(ctx, msg)
	assert.True(t, enrollment.IsWeakPassword(err))

	msg.Password = "password123"
	msg.MobileNumber = "12"
	assert.Error(t, handler.Execute(ctx, msg))

	n, err := machine.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, handler.Execute(cancelled, msg))
}

func TestReviewAccountHandler(t *testing.T) {
	repo, _ := setupRepo(t)
	machine := enrollment.NewLifecycleMachine(repo)
	handler := enrollment.NewReviewAccountHandler(machine)
	ctx := context.Background()

	account := registerStudent(t, machine, 1)

	var reviewed *enrollment.Account
	err := handler.Execute(ctx, enrollment.ReviewAccountMessage{
		Actor:     adminActor,
		AccountID: account.ID,
		Action:    enrollment.ReviewDecline,
		Reason:    "upload a clearer photo",
		OnResponse: func(acc *enrollment.Account) {
			reviewed = acc
		},
	})
	require.NoError(t, err)
	require.NotNil(t, reviewed)
	assert.Equal(t, "upload a clearer photo", reviewed.Remark.Reason())

	err = handler.Execute(ctx, enrollment.ReviewAccountMessage{
		Actor:     adminActor,
		AccountID: account.ID,
		Action:    "promote",
	})
	require.Error(t, err)
}

func TestResubmitAccountHandler(t *testing.T) {
	repo, _ := setupRepo(t)
	machine := enrollment.NewLifecycleMachine(repo)
	ctx := context.Background()

	account := registerStudent(t, machine, 1)
	_, err := machine.Decline(ctx, adminActor, account.ID, "wrong semester")
	require.NoError(t, err)

	handler := enrollment.NewResubmitAccountHandler(machine, "IN")
	err = handler.Execute(ctx, enrollment.ResubmitAccountMessage{
		ProfileMessage: enrollment.ProfileMessage{
			AccountID:    account.ID,
			Semester:     "6",
			MobileNumber: "9876500000",
		},
	})
	require.NoError(t, err)

	stored, err := repo.Accounts().FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatePending, stored.State())
	assert.Equal(t, "6", stored.Semester)
	assert.Equal(t, "+919876500000", stored.MobileNumber)
}

func TestUpdateProfileHandlerKeepsReviewState(t *testing.T) {
	repo, _ := setupRepo(t)
	machine := enrollment.NewLifecycleMachine(repo)
	ctx := context.Background()

	account := registerStudent(t, machine, 1)
	_, err := machine.Approve(ctx, adminActor, account.ID)
	require.NoError(t, err)

	handler := enrollment.NewUpdateProfileHandler(machine, "IN")
	err = handler.Execute(ctx, enrollment.UpdateProfileMessage{
		ProfileMessage: enrollment.ProfileMessage{
			AccountID:     account.ID,
			PersonalEmail: "NEW@mail.test",
		},
	})
	require.NoError(t, err)

	stored, err := repo.Accounts().FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@mail.test", stored.PersonalEmail)
	assert.Equal(t, enrollment.AccessGranted, stored.AccessStatus().Kind)
}

func TestSubmitEmotionHandler(t *testing.T) {
	repo, _ := setupRepo(t)
	machine := enrollment.NewLifecycleMachine(repo)
	handler := enrollment.NewSubmitEmotionHandler(repo)
	ctx := context.Background()

	account := registerStudent(t, machine, 1)

	err := handler.Execute(ctx, enrollment.SubmitEmotionMessage{AccountID: account.ID})
	require.Error(t, err)
	assert.True(t, enrollment.IsEmptySample(err))

	err = handler.Execute(ctx, enrollment.SubmitEmotionMessage{AccountID: account.ID, Happy: -1, Total: 10})
	require.Error(t, err)

	var sample *enrollment.EmotionSample
	err = handler.Execute(ctx, enrollment.SubmitEmotionMessage{
		AccountID: account.ID,
		Happy:     4000,
		Neutral:   2000,
		Total:     6000,
		OnResponse: func(s *enrollment.EmotionSample) {
			sample = s
		},
	})
	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.Equal(t, account.ID, sample.UserID)

	stored, err := repo.Accounts().FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.EmotionCount)

	samples, err := repo.EmotionSamples().ListByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, int64(4000), samples[0].Happy)

	err = handler.Execute(ctx, enrollment.SubmitEmotionMessage{AccountID: uuid.New(), Total: 10})
	require.Error(t, err, "samples need an existing account")
}

func TestDeleteEmotionHandlerChecksOwnership(t *testing.T) {
	repo, _ := setupRepo(t)
	machine := enrollment.NewLifecycleMachine(repo)
	submit := enrollment.NewSubmitEmotionHandler(repo)
	handler := enrollment.NewDeleteEmotionHandler(repo)
	ctx := context.Background()

	owner := registerStudent(t, machine, 1)
	other := registerStudent(t, machine, 2)

	var sample *enrollment.EmotionSample
	require.NoError(t, submit.Execute(ctx, enrollment.SubmitEmotionMessage{
		AccountID:  owner.ID,
		Sad:        100,
		Total:      100,
		OnResponse: func(s *enrollment.EmotionSample) { sample = s },
	}))

	err := handler.Execute(ctx, enrollment.DeleteEmotionMessage{AccountID: other.ID, SampleID: sample.ID})
	require.Error(t, err)
	assert.True(t, enrollment.IsUnauthorized(err))

	_, err = repo.EmotionSamples().FindByID(ctx, sample.ID)
	require.NoError(t, err, "a refused delete keeps the row")

	require.NoError(t, handler.Execute(ctx, enrollment.DeleteEmotionMessage{AccountID: owner.ID, SampleID: sample.ID}))

	_, err = repo.EmotionSamples().FindByID(ctx, sample.ID)
	assert.True(t, enrollment.IsNotFound(err))

	err = handler.Execute(ctx, enrollment.DeleteEmotionMessage{AccountID: owner.ID, SampleID: sample.ID})
	assert.True(t, enrollment.IsNotFound(err))
}

func TestPasswordResetFlow(t *testing.T) {
	repo, _ := setupRepo(t)
	machine := enrollment.NewLifecycleMachine(repo)
	ctx := context.Background()

	account := registerStudent(t, machine, 1)

	mailer := &capturingMailer{}
	otp := enrollment.NewOTPManager(repo.Accounts(), mailer, 0)
	rotator := enrollment.NewPasswordRotator(repo.Accounts(), 0)
	bag := newBag(t)

	var challenge *enrollment.Challenge
	require.NoError(t, enrollment.NewInitializePasswordResetHandler(otp).Execute(ctx, enrollment.InitializePasswordResetMessage{
		Username:   account.Username,
		Session:    bag,
		OnResponse: func(c *enrollment.Challenge) { challenge = c },
	}))
	require.NotNil(t, challenge)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, account.GSuite, mailer.sent[0].to)

	finalize := enrollment.NewFinalizePasswordResetHandler(otp, rotator)

	err := finalize.Execute(ctx, enrollment.FinalizePasswordResetMessage{Password: "new-password-1", Session: bag})
	require.Error(t, err, "finalize needs a verified code first")

	var verified uuid.UUID
	require.NoError(t, enrollment.NewVerifyPasswordResetHandler(otp).Execute(ctx, enrollment.VerifyPasswordResetMessage{
		Code:       challenge.Code,
		Session:    bag,
		OnResponse: func(id uuid.UUID) { verified = id },
	}))
	assert.Equal(t, account.ID, verified)

	err = finalize.Execute(ctx, enrollment.FinalizePasswordResetMessage{Password: "short", Session: bag})
	require.Error(t, err)
	assert.True(t, enrollment.IsWeakPassword(err))

	// a weak password keeps the grant
	require.NoError(t, finalize.Execute(ctx, enrollment.FinalizePasswordResetMessage{Password: "new-password-1", Session: bag}))

	_, err = enrollment.NewCredentialVerifier(repo.Accounts()).Verify(ctx, account.Username, "new-password-1")
	require.NoError(t, err)

	err = finalize.Execute(ctx, enrollment.FinalizePasswordResetMessage{Password: "new-password-2", Session: bag})
	require.Error(t, err, "the grant is single use")
}

func TestChangePasswordHandler(t *testing.T) {
	repo, _ := setupRepo(t)
	machine := enrollment.NewLifecycleMachine(repo)
	ctx := context.Background()

	account := registerStudent(t, machine, 1)
	handler := enrollment.NewChangePasswordHandler(enrollment.NewPasswordRotator(repo.Accounts(), 0))

	err := handler.Execute(ctx, enrollment.ChangePasswordMessage{Password: "new-password-1"})
	assert.True(t, enrollment.IsUnauthorized(err))

	require.NoError(t, handler.Execute(ctx, enrollment.ChangePasswordMessage{AccountID: account.ID, Password: "new-password-1"}))

	_, err = enrollment.NewCredentialVerifier(repo.Accounts()).Verify(ctx, account.Username, "new-password-1")
	assert.NoError(t, err)
}
