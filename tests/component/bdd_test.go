//go:build component

package component

import (
	"github.com/rbroggi/souqly/internal/core/model"
)

var phone = model.Product{ID: 1, Title: "phone", Price: 549}

func (s *ComponentTestSuite) TestRegister() {
	_, when, then := s.gherkin()

	when().
		aRegistrationIsIssued()

	then().
		theRegisteredAccountIsValid().
		theSessionIsAuthenticated().
		theKeyIsPersisted("profile_"+s.account.ID, true).
		aRegistrationEventWillEventuallyBeProduced()
}

func (s *ComponentTestSuite) TestGuestCartIsTransferredOnSignIn() {
	given, when, then := s.gherkin()

	given().
		anExistingSignedOutAccount().
		aGuestCartWith(phone).
		aGuestCartWith(phone)

	when().
		theShopperSignsIn()

	then().
		theSessionIsAuthenticated().
		theCartContains(phone, 2).
		theKeyIsPersisted("cart_guest", false).
		theKeyIsPersisted("cart_"+s.account.ID, true)
}

func (s *ComponentTestSuite) TestUpdateProfile() {
	given, when, then := s.gherkin()

	given().
		aSignedInAccount()

	when().
		theProfileGetsUpdated()

	then().
		anUpdateEventWillEventuallyBeProduced()
}

func (s *ComponentTestSuite) TestDeleteAccount() {
	given, when, then := s.gherkin()

	given().
		aSignedInAccount()

	when().
		theAccountGetsDeleted()

	then().
		theSessionIsAnonymous().
		profileAccessIsRefused().
		theKeyIsPersisted("profile_"+s.account.ID, false).
		aDeletionEventWillEventuallyBeProduced()
}
